package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

func samplePairs() []domain.EnrichedPair {
	return []domain.EnrichedPair{
		{
			Pair: domain.Pair{
				ID: "pp1", SourceID: "p1", SourceName: "A", DestinationID: "p2", DestinationName: "B",
				SourceSiteID: "s1", SourceSiteName: "east", DestinationSiteID: "s2", DestinationSiteName: "west",
				Protocol: domain.ProtocolTCP, ObservedApplicationProtocols: "http1",
			},
			Bytes: 1, ByteRate: 2, Latency: 3,
		},
		{Pair: domain.Pair{SourceID: "p3", SourceName: "C", DestinationID: "p1", DestinationName: "A", Protocol: domain.ProtocolHTTP2}},
		{Pair: domain.Pair{SourceID: "p4", SourceName: "D", DestinationID: "p1", DestinationName: "A"}},
	}
}

func TestInvertSwapsEndpoints(t *testing.T) {
	in := samplePairs()
	got := Invert(in)

	require.Len(t, got, len(in))
	first := got[0]
	assert.Equal(t, "p2", first.SourceID)
	assert.Equal(t, "B", first.SourceName)
	assert.Equal(t, "s2", first.SourceSiteID)
	assert.Equal(t, "west", first.SourceSiteName)
	assert.Equal(t, "p1", first.DestinationID)
	assert.Equal(t, "A", first.DestinationName)
	assert.Equal(t, "east", first.DestinationSiteName)
	assert.Equal(t, "pp1", first.ID)
	assert.Equal(t, domain.ProtocolTCP, first.Protocol)
	assert.Equal(t, "http1", first.ObservedApplicationProtocols)
	assert.Equal(t, 1.0, first.Bytes)
	assert.Equal(t, 2.0, first.ByteRate)
	assert.Equal(t, 3.0, first.Latency)

	assert.Equal(t, "p1", in[0].SourceID, "input must not be modified")
}

func TestInvertIsInvolution(t *testing.T) {
	for _, in := range [][]domain.EnrichedPair{nil, {}, samplePairs()} {
		if diff := cmp.Diff(in, Invert(Invert(in)), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("Invert(Invert(x)) mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestClassifyRemoteClient(t *testing.T) {
	remote := domain.EnrichedPair{Pair: domain.Pair{SourceID: "p1", DestinationID: "p9"}}

	b := Classify([]domain.EnrichedPair{remote}, nil)

	assert.Equal(t, []domain.EnrichedPair{remote}, b.RemoteClients)
	assert.Empty(t, b.TCPClients)
	assert.Empty(t, b.HTTPClients)
	assert.Empty(t, b.RemoteServers)
	assert.NotNil(t, b.TCPServers)
}

func TestClassifyPartitions(t *testing.T) {
	clients := []domain.EnrichedPair{
		{Pair: domain.Pair{SourceID: "c1", Protocol: domain.ProtocolTCP}},
		{Pair: domain.Pair{SourceID: "c2", Protocol: domain.ProtocolHTTP}},
		{Pair: domain.Pair{SourceID: "c3", Protocol: domain.ProtocolHTTP2}},
		{Pair: domain.Pair{SourceID: "c4"}},
		{Pair: domain.Pair{SourceID: "c5", Protocol: domain.ProtocolTCP}},
	}
	servers := []domain.EnrichedPair{
		{Pair: domain.Pair{SourceID: "s1"}},
		{Pair: domain.Pair{SourceID: "s2", Protocol: domain.ProtocolHTTP2}},
	}

	b := Classify(clients, servers)

	assert.Equal(t, len(clients), b.Clients())
	assert.Equal(t, len(servers), b.Servers())
	assert.Equal(t, []string{"c1", "c5"}, ids(b.TCPClients))
	assert.Equal(t, []string{"c2", "c3"}, ids(b.HTTPClients))
	assert.Equal(t, []string{"c4"}, ids(b.RemoteClients))
	assert.Empty(t, b.TCPServers)
	assert.Equal(t, []string{"s2"}, ids(b.HTTPServers))
	assert.Equal(t, []string{"s1"}, ids(b.RemoteServers))
}

func TestSortPairs(t *testing.T) {
	rows := []domain.EnrichedPair{
		{Pair: domain.Pair{SourceID: "a", DestinationName: "zeta"}, Bytes: 1, Latency: 9},
		{Pair: domain.Pair{SourceID: "b", DestinationName: "alpha"}, Bytes: 5},
		{Pair: domain.Pair{SourceID: "c", DestinationName: "mid"}, Bytes: 5, Latency: 2},
	}
	tests := []struct {
		by   SortKey
		want []string
	}{
		{SortNone, []string{"a", "b", "c"}},
		{SortBytes, []string{"b", "c", "a"}},
		{SortLatency, []string{"a", "c", "b"}},
		{SortName, []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.by), func(t *testing.T) {
			got := append([]domain.EnrichedPair(nil), rows...)
			SortPairs(got, tt.by)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByteRate, ParseSortKey("byteRate"))
	assert.Equal(t, SortNone, ParseSortKey("size"))
	assert.Equal(t, SortNone, ParseSortKey(""))
}

func ids(rows []domain.EnrichedPair) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.SourceID)
	}
	return out
}
