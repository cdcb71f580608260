package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

var ErrNotFocal = errors.New("entity kind cannot be focal")

// Options controls which metrics are attached to pair rows.
type Options struct {
	Range        time.Duration
	ShowBytes    bool
	ShowByteRate bool
	ShowLatency  bool
	// RateHistory and RateStep, when both set, fetch the byte rate as a
	// series over the last RateHistory instead of a single value.
	RateHistory time.Duration
	RateStep    time.Duration
	Sort        SortKey
}

func DefaultOptions() Options {
	return Options{
		Range:        time.Minute,
		ShowBytes:    true,
		ShowByteRate: true,
		ShowLatency:  true,
	}
}

// Detail is everything a consumer needs to render a focal entity's pairs.
type Detail struct {
	Focal   domain.FocalEntity `json:"focal"`
	Buckets domain.PairBuckets `json:"buckets"`
	// Byte-rate history keyed by counterpart name.
	ClientRates map[string][]float64 `json:"clientRates,omitempty"`
	ServerRates map[string][]float64 `json:"serverRates,omitempty"`
	// Degraded lists the metric kinds whose query failed on either side.
	Degraded []domain.MetricKind `json:"degraded,omitempty"`
}

// Explorer ties the inventory and the aggregator together for one focal entity.
type Explorer struct {
	inventory  domain.InventoryRepo
	aggregator *Aggregator
	now        func() time.Time
}

func NewExplorer(inventory domain.InventoryRepo, metrics domain.MetricsRepo) *Explorer {
	return &Explorer{
		inventory:  inventory,
		aggregator: NewAggregator(metrics),
		now:        time.Now,
	}
}

// Resolve fills in the display name of a focal entity from the inventory.
func (e *Explorer) Resolve(ctx context.Context, kind domain.EntityKind, id string) (domain.FocalEntity, error) {
	focal := domain.FocalEntity{Kind: kind, ID: id}
	switch kind {
	case domain.KindProcess:
		p, err := e.inventory.GetProcess(ctx, id)
		if err != nil {
			return focal, fmt.Errorf("resolve process %q: %w", id, err)
		}
		focal.Name = p.Name
	case domain.KindSite:
		sites, err := e.inventory.ListSites(ctx)
		if err != nil {
			return focal, fmt.Errorf("resolve site %q: %w", id, err)
		}
		for _, s := range sites {
			if s.ID == id {
				focal.Name = s.Name
				return focal, nil
			}
		}
		return focal, fmt.Errorf("resolve site %q: %w", id, domain.ErrNotFound)
	case domain.KindComponent:
		comps, err := e.inventory.ListComponents(ctx)
		if err != nil {
			return focal, fmt.Errorf("resolve component %q: %w", id, err)
		}
		for _, c := range comps {
			if c.ID == id {
				focal.Name = c.Name
				return focal, nil
			}
		}
		return focal, fmt.Errorf("resolve component %q: %w", id, domain.ErrNotFound)
	default:
		return focal, fmt.Errorf("%w: %s", ErrNotFocal, kind)
	}
	return focal, nil
}

// PairBuckets loads the focal entity's pairs in both directions, attaches
// metrics and classifies the rows. Server rows have the focal entity as
// source; client rows are inverted so the counterpart is the destination.
func (e *Explorer) PairBuckets(ctx context.Context, focal domain.FocalEntity, opts Options) (Detail, error) {
	if !focal.Kind.Focal() {
		return Detail{}, fmt.Errorf("%w: %s", ErrNotFocal, focal.Kind)
	}
	if focal.Name == "" {
		resolved, err := e.Resolve(ctx, focal.Kind, focal.ID)
		if err != nil {
			return Detail{}, err
		}
		focal = resolved
	}

	kind := focal.Kind
	req := domain.TopologyMetricsRequest{
		ShowBytes:    opts.ShowBytes,
		ShowByteRate: opts.ShowByteRate,
		ShowLatency:  opts.ShowLatency,
		GroupBy:      []string{kind.SourceLabel(), kind.DestLabel()},
		Range:        opts.Range,
	}
	if opts.RateHistory > 0 && opts.RateStep > 0 {
		end := e.now()
		req.RateSeries = &domain.SeriesWindow{Start: end.Add(-opts.RateHistory), End: end, Step: opts.RateStep}
	}
	serverReq, clientReq := req, req
	serverReq.FilterBy = map[string]string{kind.SourceLabel(): focal.Name}
	clientReq.FilterBy = map[string]string{kind.DestLabel(): focal.Name}

	var (
		serverPairs, clientPairs     []domain.Pair
		serverMetrics, clientMetrics domain.TopologyMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		serverPairs, err = e.inventory.ListPairs(gctx, kind, domain.PairQuery{SourceID: focal.ID})
		if err != nil {
			return fmt.Errorf("list %s pairs from %q: %w", kind, focal.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clientPairs, err = e.inventory.ListPairs(gctx, kind, domain.PairQuery{DestinationID: focal.ID})
		if err != nil {
			return fmt.Errorf("list %s pairs to %q: %w", kind, focal.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		serverMetrics, err = e.aggregator.GetAllTopologyMetrics(gctx, serverReq)
		if err != nil {
			return fmt.Errorf("server metrics for %q: %w", focal.Name, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clientMetrics, err = e.aggregator.GetAllTopologyMetrics(gctx, clientReq)
		if err != nil {
			return fmt.Errorf("client metrics for %q: %w", focal.Name, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	servers := Enrich(serverPairs, serverMetrics, kind.DestLabel(), DestinationName)
	clients := Invert(Enrich(clientPairs, clientMetrics, kind.SourceLabel(), SourceName))

	buckets := Classify(clients, servers)
	SortBuckets(buckets, opts.Sort)

	d := Detail{
		Focal:    focal,
		Buckets:  buckets,
		Degraded: degraded(serverMetrics, clientMetrics),
	}
	if req.RateSeries != nil {
		d.ServerRates = SeriesByName(serverMetrics.ByteRate, kind.DestLabel())
		d.ClientRates = SeriesByName(clientMetrics.ByteRate, kind.SourceLabel())
	}
	log.WithFields(log.Fields{
		"focal":   focal.Name,
		"kind":    kind,
		"clients": buckets.Clients(),
		"servers": buckets.Servers(),
	}).Debug("pair buckets built")
	return d, nil
}

// EntityGraph builds the focal entity's neighbourhood graph.
func (e *Explorer) EntityGraph(ctx context.Context, focal domain.FocalEntity, opts Options) (domain.Graph, error) {
	d, err := e.PairBuckets(ctx, focal, opts)
	if err != nil {
		return domain.Graph{}, err
	}
	return BuildEntityGraph(d.Focal, d.Buckets), nil
}

// ServiceGraph builds the listener/connector graph of one service. Listeners
// and connectors are matched to the service by routing key.
func (e *Explorer) ServiceGraph(ctx context.Context, serviceID string, rules ...GroupingRule) (domain.Graph, error) {
	svc, err := e.inventory.GetService(ctx, serviceID)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("get service %q: %w", serviceID, err)
	}

	var (
		listeners  []domain.Listener
		connectors []domain.Connector
	)
	opts := domain.ListOptions{RoutingKey: svc.Name}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listeners, err = e.inventory.ListListeners(gctx, opts)
		if err != nil {
			return fmt.Errorf("list listeners for %q: %w", svc.Name, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		connectors, err = e.inventory.ListConnectors(gctx, opts)
		if err != nil {
			return fmt.Errorf("list connectors for %q: %w", svc.Name, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Graph{}, err
	}
	return BuildServiceGraph(svc, listeners, connectors, rules...), nil
}

func degraded(ms ...domain.TopologyMetrics) []domain.MetricKind {
	seen := make(map[domain.MetricKind]bool)
	var out []domain.MetricKind
	for _, m := range ms {
		for k := range m.Errors {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
