package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

// Repo is an in-memory inventory and metrics backend. Byte counters come from
// a captured Prometheus result and wobble a little on every query so the
// dashboard looks alive.
type Repo struct {
	mu  sync.Mutex
	rnd *rand.Rand

	processByID   map[string]domain.Process
	processByName map[string]domain.Process
	octets        domain.SampleStore
}

func New() *Repo {
	return NewWithSeed(time.Now().UnixNano())
}

func NewWithSeed(seed int64) *Repo {
	r := &Repo{
		rnd:           rand.New(rand.NewSource(seed)),
		processByID:   make(map[string]domain.Process, len(processes)),
		processByName: make(map[string]domain.Process, len(processes)),
	}
	for _, p := range processes {
		r.processByID[p.ID] = p
		r.processByName[p.Name] = p
	}

	store, err := topology.DecodeSamples(octetsJSON)
	if err != nil {
		panic(fmt.Sprintf("mock: bad octets fixture: %v", err))
	}
	for _, s := range store {
		r.addEntityLabels(s.Labels)
	}
	r.octets = store
	return r
}

// addEntityLabels derives the site and component labels of a sample from its
// process labels, as the flow collector does.
func (r *Repo) addEntityLabels(labels map[string]string) {
	if p, ok := r.processByName[labels["sourceProcess"]]; ok {
		labels["sourceSite"] = p.SiteName
		labels["sourceComponent"] = p.ComponentName
	}
	if p, ok := r.processByName[labels["destProcess"]]; ok {
		labels["destSite"] = p.SiteName
		labels["destComponent"] = p.ComponentName
	}
}

// -------- InventoryRepo --------

func (r *Repo) ListSites(ctx context.Context) ([]domain.Site, error) {
	return append([]domain.Site(nil), sites...), ctx.Err()
}

func (r *Repo) ListComponents(ctx context.Context) ([]domain.Component, error) {
	return append([]domain.Component(nil), components...), ctx.Err()
}

func (r *Repo) ListProcesses(ctx context.Context, opts domain.ListOptions) ([]domain.Process, error) {
	out := []domain.Process{}
	for _, p := range processes {
		if opts.SiteID == "" || p.SiteID == opts.SiteID {
			out = append(out, p)
		}
	}
	return out, ctx.Err()
}

func (r *Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	if err := ctx.Err(); err != nil {
		return domain.Process{}, err
	}
	p, ok := r.processByID[id]
	if !ok {
		return domain.Process{}, fmt.Errorf("process %q: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (r *Repo) ListServices(ctx context.Context) ([]domain.Service, error) {
	out := make([]domain.Service, 0, len(services))
	for _, s := range services {
		for _, l := range listeners {
			if l.RoutingKey == s.Name {
				s.ListenerCount++
			}
		}
		for _, c := range connectors {
			if c.RoutingKey == s.Name {
				s.ConnectorCount++
			}
		}
		out = append(out, s)
	}
	return out, ctx.Err()
}

func (r *Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	all, err := r.ListServices(ctx)
	if err != nil {
		return domain.Service{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Service{}, fmt.Errorf("service %q: %w", id, domain.ErrNotFound)
}

func (r *Repo) ListListeners(ctx context.Context, opts domain.ListOptions) ([]domain.Listener, error) {
	out := []domain.Listener{}
	for _, l := range listeners {
		if matchOpts(opts, l.SiteID, l.RoutingKey) {
			out = append(out, l)
		}
	}
	return out, ctx.Err()
}

func (r *Repo) ListConnectors(ctx context.Context, opts domain.ListOptions) ([]domain.Connector, error) {
	out := []domain.Connector{}
	for _, c := range connectors {
		if matchOpts(opts, c.SiteID, c.RoutingKey) {
			out = append(out, c)
		}
	}
	return out, ctx.Err()
}

func matchOpts(opts domain.ListOptions, siteID, routingKey string) bool {
	return (opts.SiteID == "" || opts.SiteID == siteID) &&
		(opts.RoutingKey == "" || opts.RoutingKey == routingKey)
}

func (r *Repo) ListPairs(ctx context.Context, kind domain.EntityKind, q domain.PairQuery) ([]domain.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kind.Focal() {
		return nil, fmt.Errorf("no pairs for entity kind %q", kind)
	}
	out := []domain.Pair{}
	seen := map[[2]string]bool{}
	for _, l := range processLinks {
		src, dst := r.processByID[l.src], r.processByID[l.dst]
		p := domain.Pair{Protocol: l.proto, ObservedApplicationProtocols: l.appProto}
		switch kind {
		case domain.KindProcess:
			p.SourceID, p.SourceName = src.ID, src.Name
			p.DestinationID, p.DestinationName = dst.ID, dst.Name
			p.SourceSiteID, p.SourceSiteName = src.SiteID, src.SiteName
			p.DestinationSiteID, p.DestinationSiteName = dst.SiteID, dst.SiteName
		case domain.KindSite:
			p.SourceID, p.SourceName = src.SiteID, src.SiteName
			p.DestinationID, p.DestinationName = dst.SiteID, dst.SiteName
		case domain.KindComponent:
			p.SourceID, p.SourceName = src.ComponentID, src.ComponentName
			p.DestinationID, p.DestinationName = dst.ComponentID, dst.ComponentName
		}
		key := [2]string{p.SourceID, p.DestinationID}
		if p.SourceID == p.DestinationID || seen[key] {
			continue
		}
		seen[key] = true
		if (q.SourceID != "" && p.SourceID != q.SourceID) || (q.DestinationID != "" && p.DestinationID != q.DestinationID) {
			continue
		}
		p.ID = "pair-" + p.SourceID + "-" + p.DestinationID
		out = append(out, p)
	}
	return out, nil
}

// -------- MetricsRepo --------

// QueryMetric filters the captured counters by q.FilterBy and aggregates them
// over q.GroupBy: bytes and byte rate are summed, latency takes the maximum.
func (r *Repo) QueryMetric(ctx context.Context, kind domain.MetricKind, q domain.MetricQuery) (domain.SampleStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := q.Range
	if rng <= 0 {
		rng = time.Minute
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	type group struct {
		labels map[string]string
		value  float64
	}
	var order []string
	groups := map[string]*group{}
	for _, s := range r.octets {
		if !matchLabels(s.Labels, q.FilterBy) {
			continue
		}
		v := r.value(kind, s, rng)
		key, labels := groupOf(s.Labels, q.GroupBy)
		g, ok := groups[key]
		if !ok {
			g = &group{labels: labels}
			groups[key] = g
			order = append(order, key)
		}
		if kind == domain.MetricLatency {
			g.value = max(g.value, v)
		} else {
			g.value += v
		}
	}

	out := make(domain.SampleStore, 0, len(order))
	for _, key := range order {
		g := groups[key]
		s := domain.Sample{Labels: g.labels, Value: g.value}
		if q.Series != nil {
			s.Series = r.seriesAround(g.value, *q.Series)
			s.Value = 0
		}
		out = append(out, s)
	}
	return out, nil
}

// value scales the hourly byte counter of a sample to the requested kind.
func (r *Repo) value(kind domain.MetricKind, s domain.Sample, rng time.Duration) float64 {
	wobble := 0.9 + 0.2*r.rnd.Float64()
	switch kind {
	case domain.MetricBytes:
		return s.Value * rng.Hours() * wobble
	case domain.MetricByteRate:
		return s.Value / 3600 * wobble
	default:
		return latencyOf(s.Labels) * wobble
	}
}

// latencyOf is a stable per-pair latency in microseconds.
func latencyOf(labels map[string]string) float64 {
	h := 0
	for _, c := range labels["sourceProcess"] + "|" + labels["destProcess"] {
		h = (h*31 + int(c)) % 9973
	}
	return float64(250 + h%4750)
}

func matchLabels(labels, filter map[string]string) bool {
	for k, v := range filter {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func groupOf(labels map[string]string, by []string) (string, map[string]string) {
	out := make(map[string]string, len(by))
	vals := make([]string, len(by))
	for i, k := range by {
		if v, ok := labels[k]; ok {
			out[k] = v
		}
		vals[i] = labels[k]
	}
	return strings.Join(vals, "\xff"), out
}

// seriesAround walks back from v so the newest point is v itself.
func (r *Repo) seriesAround(v float64, w domain.SeriesWindow) []domain.Point {
	if w.Step <= 0 || !w.End.After(w.Start) {
		return []domain.Point{{Timestamp: w.End, Value: v}}
	}
	n := int(w.End.Sub(w.Start)/w.Step) + 1
	if n > 500 {
		n = 500
	}
	pts := make([]domain.Point, n)
	cur := v
	for i := n - 1; i >= 0; i-- {
		pts[i] = domain.Point{Timestamp: w.End.Add(-time.Duration(n-1-i) * w.Step), Value: cur}
		cur = max(0, cur*(1+(r.rnd.Float64()-0.5)*0.1))
	}
	return pts
}
