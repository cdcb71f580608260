package topology

import (
	"context"
	"sync"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// fakeMetrics answers QueryMetric from a per-kind table and records calls.
type fakeMetrics struct {
	mu      sync.Mutex
	results map[domain.MetricKind]domain.SampleStore
	errs    map[domain.MetricKind]error
	// byFilter, when set, picks the result by the single FilterBy label key.
	byFilter map[string]map[domain.MetricKind]domain.SampleStore
	calls    []fakeCall
}

type fakeCall struct {
	kind  domain.MetricKind
	query domain.MetricQuery
}

func (f *fakeMetrics) QueryMetric(_ context.Context, kind domain.MetricKind, q domain.MetricQuery) (domain.SampleStore, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{kind, q})
	f.mu.Unlock()

	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	for key := range q.FilterBy {
		if byKind, ok := f.byFilter[key]; ok {
			return byKind[kind], nil
		}
	}
	return f.results[kind], nil
}

// fakeInventory serves fixed entities; pairs are filtered like the REST API.
type fakeInventory struct {
	sites      []domain.Site
	components []domain.Component
	processes  []domain.Process
	services   []domain.Service
	listeners  []domain.Listener
	connectors []domain.Connector
	pairs      map[domain.EntityKind][]domain.Pair
	err        error
}

func (f *fakeInventory) ListSites(context.Context) ([]domain.Site, error) {
	return f.sites, f.err
}

func (f *fakeInventory) ListComponents(context.Context) ([]domain.Component, error) {
	return f.components, f.err
}

func (f *fakeInventory) ListProcesses(context.Context, domain.ListOptions) ([]domain.Process, error) {
	return f.processes, f.err
}

func (f *fakeInventory) GetProcess(_ context.Context, id string) (domain.Process, error) {
	if f.err != nil {
		return domain.Process{}, f.err
	}
	for _, p := range f.processes {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Process{}, domain.ErrNotFound
}

func (f *fakeInventory) ListServices(context.Context) ([]domain.Service, error) {
	return f.services, f.err
}

func (f *fakeInventory) GetService(_ context.Context, id string) (domain.Service, error) {
	if f.err != nil {
		return domain.Service{}, f.err
	}
	for _, s := range f.services {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Service{}, domain.ErrNotFound
}

func (f *fakeInventory) ListListeners(_ context.Context, opts domain.ListOptions) ([]domain.Listener, error) {
	var out []domain.Listener
	for _, l := range f.listeners {
		if opts.RoutingKey == "" || l.RoutingKey == opts.RoutingKey {
			out = append(out, l)
		}
	}
	return out, f.err
}

func (f *fakeInventory) ListConnectors(_ context.Context, opts domain.ListOptions) ([]domain.Connector, error) {
	var out []domain.Connector
	for _, c := range f.connectors {
		if opts.RoutingKey == "" || c.RoutingKey == opts.RoutingKey {
			out = append(out, c)
		}
	}
	return out, f.err
}

func (f *fakeInventory) ListPairs(_ context.Context, kind domain.EntityKind, q domain.PairQuery) ([]domain.Pair, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Pair
	for _, p := range f.pairs[kind] {
		if q.SourceID != "" && p.SourceID != q.SourceID {
			continue
		}
		if q.DestinationID != "" && p.DestinationID != q.DestinationID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
