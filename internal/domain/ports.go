package domain

import "context"

// PairQuery narrows a pair listing. Empty ids match everything.
type PairQuery struct {
	SourceID      string
	DestinationID string
}

type ListOptions struct {
	SiteID     string
	RoutingKey string
}

type InventoryRepo interface {
	ListSites(ctx context.Context) ([]Site, error)
	ListComponents(ctx context.Context) ([]Component, error)
	ListProcesses(ctx context.Context, opts ListOptions) ([]Process, error)
	GetProcess(ctx context.Context, id string) (Process, error)
	ListServices(ctx context.Context) ([]Service, error)
	GetService(ctx context.Context, id string) (Service, error)
	ListListeners(ctx context.Context, opts ListOptions) ([]Listener, error)
	ListConnectors(ctx context.Context, opts ListOptions) ([]Connector, error)
	// ListPairs returns the process, site or component pairs depending on kind.
	ListPairs(ctx context.Context, kind EntityKind, q PairQuery) ([]Pair, error)
}

type MetricsRepo interface {
	QueryMetric(ctx context.Context, kind MetricKind, q MetricQuery) (SampleStore, error)
}
