package rest

import (
	"context"
	"fmt"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// collection is the list envelope of the inventory API. Only Results is used.
type collection[T any] struct {
	Results        []T `json:"results"`
	Count          int `json:"count"`
	TimeRangeCount int `json:"timeRangeCount"`
}

type item[T any] struct {
	Results T `json:"results"`
}

var pairPaths = map[domain.EntityKind]string{
	domain.KindProcess:   "processpairs",
	domain.KindSite:      "sitepairs",
	domain.KindComponent: "componentpairs",
}

// Repo implements domain.InventoryRepo over the REST inventory API.
type Repo struct {
	client *RESTClient
}

func New(cfg Config) (*Repo, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Repo{client: c}, nil
}

func list[T any](ctx context.Context, req *Request) ([]T, error) {
	var env collection[T]
	if err := req.Do(ctx).Into(&env); err != nil {
		return nil, err
	}
	if env.Results == nil {
		env.Results = []T{}
	}
	return env.Results, nil
}

func get[T any](ctx context.Context, req *Request) (T, error) {
	var env item[T]
	err := req.Do(ctx).Into(&env)
	return env.Results, err
}

func (r *Repo) ListSites(ctx context.Context) ([]domain.Site, error) {
	return list[domain.Site](ctx, r.client.Get().Path("sites"))
}

func (r *Repo) ListComponents(ctx context.Context) ([]domain.Component, error) {
	return list[domain.Component](ctx, r.client.Get().Path("components"))
}

func (r *Repo) ListProcesses(ctx context.Context, opts domain.ListOptions) ([]domain.Process, error) {
	return list[domain.Process](ctx, r.client.Get().Path("processes").Param("parent", opts.SiteID))
}

func (r *Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	return get[domain.Process](ctx, r.client.Get().Path("processes", id))
}

func (r *Repo) ListServices(ctx context.Context) ([]domain.Service, error) {
	return list[domain.Service](ctx, r.client.Get().Path("services"))
}

func (r *Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	return get[domain.Service](ctx, r.client.Get().Path("services", id))
}

func (r *Repo) ListListeners(ctx context.Context, opts domain.ListOptions) ([]domain.Listener, error) {
	return list[domain.Listener](ctx, r.client.Get().Path("listeners").
		Param("parent", opts.SiteID).
		Param("routingKey", opts.RoutingKey))
}

func (r *Repo) ListConnectors(ctx context.Context, opts domain.ListOptions) ([]domain.Connector, error) {
	return list[domain.Connector](ctx, r.client.Get().Path("connectors").
		Param("parent", opts.SiteID).
		Param("routingKey", opts.RoutingKey))
}

func (r *Repo) ListPairs(ctx context.Context, kind domain.EntityKind, q domain.PairQuery) ([]domain.Pair, error) {
	p, ok := pairPaths[kind]
	if !ok {
		return nil, fmt.Errorf("no pairs for entity kind %q", kind)
	}
	return list[domain.Pair](ctx, r.client.Get().Path(p).
		Param("sourceId", q.SourceID).
		Param("destinationId", q.DestinationID))
}
