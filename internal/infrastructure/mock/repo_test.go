package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

func TestListPairs(t *testing.T) {
	r := NewWithSeed(1)
	ctx := context.Background()

	all, err := r.ListPairs(ctx, domain.KindProcess, domain.PairQuery{})
	require.NoError(t, err)
	assert.Len(t, all, len(processLinks))

	from, err := r.ListPairs(ctx, domain.KindProcess, domain.PairQuery{SourceID: "proc-api"})
	require.NoError(t, err)
	require.Len(t, from, 2)
	for _, p := range from {
		assert.Equal(t, "api-6b4d", p.SourceName)
		assert.Equal(t, "site-east", p.SourceSiteID)
	}

	sitePairs, err := r.ListPairs(ctx, domain.KindSite, domain.PairQuery{})
	require.NoError(t, err)
	require.Len(t, sitePairs, 1, "same-site links are not pairs")
	assert.Equal(t, "east", sitePairs[0].SourceName)
	assert.Equal(t, "west", sitePairs[0].DestinationName)

	_, err = r.ListPairs(ctx, domain.KindListener, domain.PairQuery{})
	assert.Error(t, err)
}

func TestGetters(t *testing.T) {
	r := NewWithSeed(1)
	ctx := context.Background()

	p, err := r.GetProcess(ctx, "proc-postgres")
	require.NoError(t, err)
	assert.Equal(t, "west", p.SiteName)

	_, err = r.GetProcess(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	svc, err := r.GetService(ctx, "svc-postgres")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.ListenerCount)
	assert.Equal(t, 2, svc.ConnectorCount)

	_, err = r.GetService(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	west, err := r.ListProcesses(ctx, domain.ListOptions{SiteID: "site-west"})
	require.NoError(t, err)
	assert.Len(t, west, 3)

	ls, err := r.ListListeners(ctx, domain.ListOptions{RoutingKey: "postgres:5432", SiteID: "site-west"})
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, "lst-postgres-west", ls[0].ID)
}

func TestQueryMetricFiltersAndGroups(t *testing.T) {
	r := NewWithSeed(1)
	q := domain.MetricQuery{
		GroupBy:  []string{"sourceProcess", "destProcess"},
		FilterBy: map[string]string{"sourceProcess": "api-6b4d"},
		Range:    time.Hour,
	}

	store, err := r.QueryMetric(context.Background(), domain.MetricBytes, q)
	require.NoError(t, err)
	require.Len(t, store, 3)
	for _, s := range store {
		assert.Equal(t, "api-6b4d", s.Labels["sourceProcess"])
		assert.NotContains(t, s.Labels, "sourceSite", "only grouped labels are kept")
	}
	got := map[string]float64{}
	for _, s := range store {
		got[s.Labels["destProcess"]] = s.Value
	}
	assert.InDelta(t, 7340032, got["postgres-0"], 7340032*0.1+1)

	bySite, err := r.QueryMetric(context.Background(), domain.MetricByteRate, domain.MetricQuery{
		GroupBy:  []string{"sourceSite", "destSite"},
		FilterBy: map[string]string{"sourceSite": "east"},
	})
	require.NoError(t, err)
	require.Len(t, bySite, 2)
	for _, s := range bySite {
		assert.Greater(t, s.Value, 0.0)
	}
}

func TestQueryMetricSeries(t *testing.T) {
	r := NewWithSeed(1)
	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	store, err := r.QueryMetric(context.Background(), domain.MetricByteRate, domain.MetricQuery{
		GroupBy:  []string{"destProcess"},
		FilterBy: map[string]string{"sourceProcess": "loadgen-5c7b"},
		Series:   &domain.SeriesWindow{Start: end.Add(-10 * time.Minute), End: end, Step: time.Minute},
	})
	require.NoError(t, err)
	require.Len(t, store, 1)
	require.Len(t, store[0].Series, 11)
	assert.Equal(t, end, store[0].Series[10].Timestamp)
	assert.Greater(t, store[0].Scalar(), 0.0)
}

func TestMockDrivesExplorer(t *testing.T) {
	r := NewWithSeed(1)
	ex := topology.NewExplorer(r, r)

	d, err := ex.PairBuckets(context.Background(), domain.FocalEntity{Kind: domain.KindProcess, ID: "proc-api"}, topology.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, d.Buckets.Servers())
	assert.Equal(t, 1, d.Buckets.Clients())
	require.Len(t, d.Buckets.TCPServers, 1)
	assert.Greater(t, d.Buckets.TCPServers[0].Bytes, 0.0)
	require.Len(t, d.Buckets.HTTPClients, 1)
	assert.Equal(t, "frontend-7d9f", d.Buckets.HTTPClients[0].DestinationName)
	assert.Greater(t, d.Buckets.HTTPClients[0].Latency, 0.0)

	g, err := ex.ServiceGraph(context.Background(), "svc-postgres")
	require.NoError(t, err)
	// service, 2 listeners, 2 connectors, 1 bound process
	assert.Len(t, g.Nodes, 6)
	assert.Len(t, g.Edges, 5)
}

func TestCancelledContext(t *testing.T) {
	r := NewWithSeed(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.QueryMetric(ctx, domain.MetricBytes, domain.MetricQuery{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.ListPairs(ctx, domain.KindProcess, domain.PairQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}
