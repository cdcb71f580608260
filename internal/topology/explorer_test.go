package topology

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

func explorerFixture() (*fakeInventory, *fakeMetrics) {
	inv := &fakeInventory{
		sites: []domain.Site{{ID: "s1", Name: "east"}, {ID: "s2", Name: "west"}},
		processes: []domain.Process{
			{ID: "p1", Name: "frontend", SiteID: "s1", SiteName: "east"},
			{ID: "p2", Name: "backend", SiteID: "s2", SiteName: "west"},
			{ID: "p3", Name: "loadgen", SiteID: "s1", SiteName: "east"},
		},
		pairs: map[domain.EntityKind][]domain.Pair{
			domain.KindProcess: {
				{SourceID: "p1", SourceName: "frontend", DestinationID: "p2", DestinationName: "backend", Protocol: domain.ProtocolHTTP},
				{SourceID: "p1", SourceName: "frontend", DestinationID: "p9", DestinationName: "external"},
				{SourceID: "p3", SourceName: "loadgen", DestinationID: "p1", DestinationName: "frontend", Protocol: domain.ProtocolTCP},
			},
		},
	}
	metrics := &fakeMetrics{
		byFilter: map[string]map[domain.MetricKind]domain.SampleStore{
			// frontend as source: samples name the destination.
			"sourceProcess": {
				domain.MetricBytes: {
					{Labels: map[string]string{"sourceProcess": "frontend", "destProcess": "backend"}, Value: 2048},
				},
				domain.MetricLatency: {
					{Labels: map[string]string{"sourceProcess": "frontend", "destProcess": "backend"}, Value: 1500},
				},
			},
			// frontend as destination: samples name the source.
			"destProcess": {
				domain.MetricBytes: {
					{Labels: map[string]string{"sourceProcess": "loadgen", "destProcess": "frontend"}, Value: 512},
				},
				domain.MetricByteRate: {
					{
						Labels: map[string]string{"sourceProcess": "loadgen", "destProcess": "frontend"},
						Series: []domain.Point{{Value: 1}, {Value: 3}},
					},
				},
			},
		},
	}
	return inv, metrics
}

func TestExplorerPairBuckets(t *testing.T) {
	inv, metrics := explorerFixture()
	ex := NewExplorer(inv, metrics)

	d, err := ex.PairBuckets(context.Background(), domain.FocalEntity{Kind: domain.KindProcess, ID: "p1"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "frontend", d.Focal.Name, "name is resolved from the inventory")
	assert.Empty(t, d.Degraded)

	require.Len(t, d.Buckets.HTTPServers, 1)
	srv := d.Buckets.HTTPServers[0]
	assert.Equal(t, "p2", srv.DestinationID)
	assert.Equal(t, 2048.0, srv.Bytes)
	assert.Equal(t, 1500.0, srv.Latency)

	require.Len(t, d.Buckets.RemoteServers, 1)
	assert.Zero(t, d.Buckets.RemoteServers[0].Bytes)

	require.Len(t, d.Buckets.TCPClients, 1)
	cli := d.Buckets.TCPClients[0]
	assert.Equal(t, "p1", cli.SourceID, "client rows are oriented from the focal entity")
	assert.Equal(t, "loadgen", cli.DestinationName)
	assert.Equal(t, 512.0, cli.Bytes)
	assert.Equal(t, 3.0, cli.ByteRate)

	assert.Empty(t, d.Buckets.HTTPClients)
	assert.Empty(t, d.Buckets.RemoteClients)
	assert.Empty(t, d.Buckets.TCPServers)
	assert.Nil(t, d.ClientRates, "no series requested")

	// Two aggregator calls with opposite filters, three kinds each.
	assert.Len(t, metrics.calls, 6)
	for _, c := range metrics.calls {
		assert.Equal(t, []string{"sourceProcess", "destProcess"}, c.query.GroupBy)
		assert.Len(t, c.query.FilterBy, 1)
		assert.Equal(t, time.Minute, c.query.Range)
	}
}

func TestExplorerPairBucketsRateHistory(t *testing.T) {
	inv, metrics := explorerFixture()
	ex := NewExplorer(inv, metrics)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ex.now = func() time.Time { return now }

	opts := DefaultOptions()
	opts.RateHistory = 10 * time.Minute
	opts.RateStep = time.Minute
	d, err := ex.PairBuckets(context.Background(), domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"}, opts)
	require.NoError(t, err)

	assert.Equal(t, map[string][]float64{"loadgen": {1, 3}}, d.ClientRates)
	assert.Empty(t, d.ServerRates)
	for _, c := range metrics.calls {
		if c.kind != domain.MetricByteRate {
			continue
		}
		require.NotNil(t, c.query.Series)
		assert.Equal(t, now, c.query.Series.End)
		assert.Equal(t, now.Add(-10*time.Minute), c.query.Series.Start)
	}
}

func TestExplorerPairBucketsDegraded(t *testing.T) {
	inv, metrics := explorerFixture()
	metrics.errs = map[domain.MetricKind]error{domain.MetricLatency: errors.New("query timed out")}

	d, err := NewExplorer(inv, metrics).PairBuckets(context.Background(),
		domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []domain.MetricKind{domain.MetricLatency}, d.Degraded)
	require.Len(t, d.Buckets.HTTPServers, 1)
	assert.Equal(t, 2048.0, d.Buckets.HTTPServers[0].Bytes)
	assert.Zero(t, d.Buckets.HTTPServers[0].Latency)
}

func TestExplorerPairBucketsOnlyKindFails(t *testing.T) {
	inv, metrics := explorerFixture()
	metrics.errs = map[domain.MetricKind]error{domain.MetricLatency: errors.New("503 service unavailable")}

	opts := DefaultOptions()
	opts.ShowBytes = false
	opts.ShowByteRate = false
	d, err := NewExplorer(inv, metrics).PairBuckets(context.Background(),
		domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"}, opts)
	require.NoError(t, err)

	assert.Equal(t, []domain.MetricKind{domain.MetricLatency}, d.Degraded)
	assert.Len(t, d.Buckets.HTTPServers, 1, "inventory rows survive")
	assert.Len(t, d.Buckets.TCPClients, 1)
}

func TestExplorerPairBucketsErrors(t *testing.T) {
	upstream := errors.New("502 bad gateway")
	tests := []struct {
		name    string
		focal   domain.FocalEntity
		inv     func(*fakeInventory)
		metrics func(*fakeMetrics)
		wantIs  error
	}{
		{
			name:   "not a focal kind",
			focal:  domain.FocalEntity{Kind: domain.KindListener, ID: "l1"},
			wantIs: ErrNotFocal,
		},
		{
			name:   "unknown process",
			focal:  domain.FocalEntity{Kind: domain.KindProcess, ID: "nope"},
			wantIs: domain.ErrNotFound,
		},
		{
			name:   "unknown site",
			focal:  domain.FocalEntity{Kind: domain.KindSite, ID: "nope"},
			wantIs: domain.ErrNotFound,
		},
		{
			name:   "inventory transport failure",
			focal:  domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"},
			inv:    func(f *fakeInventory) { f.err = upstream },
			wantIs: upstream,
		},
		{
			name:  "metrics backend down",
			focal: domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"},
			metrics: func(f *fakeMetrics) {
				f.errs = map[domain.MetricKind]error{
					domain.MetricBytes: upstream, domain.MetricByteRate: upstream, domain.MetricLatency: upstream,
				}
			},
			wantIs: upstream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, metrics := explorerFixture()
			if tt.inv != nil {
				tt.inv(inv)
			}
			if tt.metrics != nil {
				tt.metrics(metrics)
			}
			_, err := NewExplorer(inv, metrics).PairBuckets(context.Background(), tt.focal, DefaultOptions())
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestExplorerSiteFocal(t *testing.T) {
	inv, metrics := explorerFixture()
	inv.pairs[domain.KindSite] = []domain.Pair{
		{SourceID: "s1", SourceName: "east", DestinationID: "s2", DestinationName: "west", Protocol: domain.ProtocolTCP},
	}
	metrics.byFilter = map[string]map[domain.MetricKind]domain.SampleStore{
		"sourceSite": {domain.MetricBytes: {{Labels: map[string]string{"destSite": "west"}, Value: 99}}},
	}

	d, err := NewExplorer(inv, metrics).PairBuckets(context.Background(),
		domain.FocalEntity{Kind: domain.KindSite, ID: "s1"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "east", d.Focal.Name)
	require.Len(t, d.Buckets.TCPServers, 1)
	assert.Equal(t, 99.0, d.Buckets.TCPServers[0].Bytes)
}

func TestExplorerEntityGraph(t *testing.T) {
	inv, metrics := explorerFixture()

	g, err := NewExplorer(inv, metrics).EntityGraph(context.Background(),
		domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "frontend"}, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 3)
}

func TestExplorerServiceGraph(t *testing.T) {
	svc, listeners, connectors := serviceFixture()
	inv := &fakeInventory{
		services:   []domain.Service{svc, {ID: "svc2", Name: "other"}},
		listeners:  append(listeners, domain.Listener{ID: "l9", Name: "other", RoutingKey: "other"}),
		connectors: connectors,
	}
	ex := NewExplorer(inv, &fakeMetrics{})

	g, err := ex.ServiceGraph(context.Background(), "svc1")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 6)
	assert.Len(t, g.Edges, 5)

	_, err = ex.ServiceGraph(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
