package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

func TestBuildGraphFocalWithoutRelationships(t *testing.T) {
	focal := GraphEntity{ID: "p1", Name: "frontend", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east"}

	for _, rule := range []GroupingRule{GroupBySite, GroupByComponent, GroupByService} {
		t.Run(rule.Type, func(t *testing.T) {
			got := BuildGraph([]GraphEntity{focal}, nil, rule)

			want := domain.Graph{
				Nodes:  []domain.Node{{ID: "p1", Label: "frontend", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east"}},
				Edges:  []domain.Edge{},
				Combos: []domain.Combo{},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("graph mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildGraphEmpty(t *testing.T) {
	got := BuildGraph(nil, nil)
	assert.NotNil(t, got.Nodes)
	assert.NotNil(t, got.Edges)
	assert.NotNil(t, got.Combos)
	assert.Empty(t, got.Nodes)
}

func TestBuildGraphSumsCollidingEdges(t *testing.T) {
	a := tcpPair("p1", "A", "p2", "B")
	a.Bytes, a.ByteRate, a.Latency = 100, 1, 10
	b := tcpPair("p1", "A", "p2", "B")
	b.Bytes, b.ByteRate, b.Latency = 50, 2, 5
	http := a
	http.Protocol = domain.ProtocolHTTP

	got := BuildGraph(nil, []domain.EnrichedPair{a, b, http})

	require.Len(t, got.Nodes, 2)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, domain.Edge{
		ID: "p1->p2/tcp", SourceID: "p1", DestinationID: "p2", Protocol: domain.ProtocolTCP,
		Bytes: 150, ByteRate: 3, Latency: 15,
	}, got.Edges[0])
	assert.Equal(t, "p1->p2/http1", got.Edges[1].ID)
	assert.Equal(t, 100.0, got.Edges[1].Bytes)
}

func TestBuildGraphNodeSetIsIdempotent(t *testing.T) {
	rels := []domain.EnrichedPair{
		tcpPair("p1", "A", "p2", "B"),
		tcpPair("p2", "B", "p3", "C"),
		tcpPair("p1", "A", "p3", "C"),
	}
	shuffled := []domain.EnrichedPair{rels[2], rels[0], rels[1], rels[0], rels[2]}

	first := BuildGraph(nil, rels)
	second := BuildGraph(nil, rels)
	reordered := BuildGraph(nil, shuffled)

	assert.Len(t, first.Nodes, 3)
	assert.Equal(t, len(first.Nodes), len(second.Nodes))
	assert.Equal(t, len(first.Nodes), len(reordered.Nodes))
	assert.Len(t, reordered.Edges, 3)
}

func TestBuildGraphEntitiesWinOverRelationshipNames(t *testing.T) {
	entities := []GraphEntity{{ID: "p2", Name: "backend", Kind: domain.KindProcess}}
	rels := []domain.EnrichedPair{tcpPair("p1", "A", "p2", "B")}

	got := BuildGraph(entities, rels)

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "backend", got.Nodes[0].Label)
	assert.Equal(t, domain.KindProcess, got.Nodes[0].Kind)
	assert.Equal(t, "A", got.Nodes[1].Label)
}

func TestBuildGraphSkipsRelationshipsWithoutIDs(t *testing.T) {
	got := BuildGraph(nil, []domain.EnrichedPair{{Pair: domain.Pair{SourceID: "p1", SourceName: "A"}}})
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)
}

func TestBuildGraphNoCombosWithoutEdges(t *testing.T) {
	entities := []GraphEntity{
		{ID: "p1", Name: "A", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east"},
		{ID: "p2", Name: "B", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east"},
	}
	idless := []domain.EnrichedPair{{Pair: domain.Pair{SourceName: "A", DestinationName: "B"}}}

	for name, rels := range map[string][]domain.EnrichedPair{"none": nil, "only id-less": idless} {
		t.Run(name, func(t *testing.T) {
			got := BuildGraph(entities, rels, GroupBySite)
			assert.Len(t, got.Nodes, 2)
			assert.Empty(t, got.Edges)
			assert.Equal(t, []domain.Combo{}, got.Combos)
		})
	}
}

func TestBuildGraphCombos(t *testing.T) {
	entities := []GraphEntity{
		{ID: "p1", Name: "A", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east", ComponentID: "c1", ComponentName: "web"},
		{ID: "p2", Name: "B", Kind: domain.KindProcess, SiteID: "s2", SiteName: "west", ComponentID: "c1", ComponentName: "web"},
		{ID: "p3", Name: "C", Kind: domain.KindProcess, SiteID: "s1", SiteName: "east"},
		{ID: "p4", Name: "D", Kind: domain.KindProcess},
	}
	rels := []domain.EnrichedPair{tcpPair("p1", "A", "p2", "B")}

	got := BuildGraph(entities, rels, GroupBySite, GroupByComponent)

	want := []domain.Combo{
		{ID: "site:s1", Type: "site", Label: "east", NodeIDs: []string{"p1", "p3"}},
		{ID: "site:s2", Type: "site", Label: "west", NodeIDs: []string{"p2"}},
		{ID: "component:c1", Type: "component", Label: "web", NodeIDs: []string{"p1", "p2"}},
	}
	if diff := cmp.Diff(want, got.Combos); diff != "" {
		t.Errorf("combos mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got.Nodes, 4, "ungrouped nodes are still emitted")

	// A node joins at most one combo per type.
	for _, typ := range []string{"site", "component"} {
		seen := map[string]bool{}
		for _, c := range got.Combos {
			if c.Type != typ {
				continue
			}
			for _, id := range c.NodeIDs {
				assert.False(t, seen[id], "%s in two %s combos", id, typ)
				seen[id] = true
			}
		}
	}
}

func serviceFixture() (domain.Service, []domain.Listener, []domain.Connector) {
	svc := domain.Service{ID: "svc1", Name: "backend:8080", Protocol: domain.ProtocolTCP}
	listeners := []domain.Listener{
		{ID: "l1", Name: "backend-east", SiteID: "sA", SiteName: "east", RoutingKey: svc.Name},
		{ID: "l2", Name: "backend-west", SiteID: "sB", SiteName: "west", RoutingKey: svc.Name, Protocol: domain.ProtocolHTTP},
	}
	connectors := []domain.Connector{
		{ID: "c1", Name: "backend-east", SiteID: "sA", SiteName: "east", RoutingKey: svc.Name, ProcessID: "p-a", ProcessName: "backend-7d9f"},
		{ID: "c2", Name: "backend-west", SiteID: "sB", SiteName: "west", RoutingKey: svc.Name},
	}
	return svc, listeners, connectors
}

func TestBuildServiceGraph(t *testing.T) {
	svc, listeners, connectors := serviceFixture()

	got := BuildServiceGraph(svc, listeners, connectors)

	require.Len(t, got.Nodes, 6)
	require.Len(t, got.Edges, 5)

	var edges []string
	for _, e := range got.Edges {
		edges = append(edges, e.ID)
	}
	assert.Equal(t, []string{
		"l1->svc1/tcp",
		"l2->svc1/http1",
		"svc1->c1/tcp",
		"c1->p-a/tcp",
		"svc1->c2/tcp",
	}, edges)

	want := []domain.Combo{
		{ID: "site:sA", Type: "site", Label: "east", NodeIDs: []string{"l1", "c1", "p-a"}},
		{ID: "site:sB", Type: "site", Label: "west", NodeIDs: []string{"l2", "c2"}},
	}
	if diff := cmp.Diff(want, got.Combos); diff != "" {
		t.Errorf("combos mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildServiceGraphByService(t *testing.T) {
	svc, listeners, connectors := serviceFixture()

	got := BuildServiceGraph(svc, listeners, connectors, GroupByService)

	require.Len(t, got.Combos, 1)
	assert.Equal(t, "service:svc1", got.Combos[0].ID)
	assert.Equal(t, []string{"l1", "l2", "c1", "c2"}, got.Combos[0].NodeIDs)
}

func TestBuildServiceGraphWithoutMembers(t *testing.T) {
	got := BuildServiceGraph(domain.Service{ID: "svc1", Name: "idle"}, nil, nil)

	assert.Equal(t, []domain.Node{{ID: "svc1", Label: "idle", Kind: domain.KindService}}, got.Nodes)
	assert.Empty(t, got.Edges)
	assert.Empty(t, got.Combos)
}

func TestBuildEntityGraph(t *testing.T) {
	focal := domain.FocalEntity{Kind: domain.KindProcess, ID: "p1", Name: "A"}
	server := tcpPair("p1", "A", "p2", "B")
	server.DestinationSiteID, server.DestinationSiteName = "s2", "west"
	server.Bytes = 10
	client := Invert([]domain.EnrichedPair{tcpPair("p3", "C", "p1", "A")})[0]
	remote := domain.EnrichedPair{Pair: domain.Pair{SourceID: "p1", SourceName: "A", DestinationID: "p9", DestinationName: "ext"}}

	buckets := Classify([]domain.EnrichedPair{client}, []domain.EnrichedPair{server, remote})
	got := BuildEntityGraph(focal, buckets)

	require.Len(t, got.Nodes, 4)
	assert.Equal(t, "p1", got.Nodes[0].ID)
	assert.Equal(t, domain.KindProcess, got.Nodes[3].Kind)

	byID := map[string]domain.Edge{}
	for _, e := range got.Edges {
		byID[e.ID] = e
	}
	assert.Len(t, byID, 3)
	assert.Equal(t, 10.0, byID["p1->p2/tcp"].Bytes)
	assert.Contains(t, byID, "p3->p1/tcp", "client rows point at the focal entity")
	assert.Contains(t, byID, "p1->p9")

	assert.Equal(t, []domain.Combo{{ID: "site:s2", Type: "site", Label: "west", NodeIDs: []string{"p2"}}}, got.Combos)
}

func TestBuildEntityGraphNoPairs(t *testing.T) {
	focal := domain.FocalEntity{Kind: domain.KindSite, ID: "s1", Name: "east"}

	got := BuildEntityGraph(focal, Classify(nil, nil))

	assert.Equal(t, domain.Graph{
		Nodes:  []domain.Node{{ID: "s1", Label: "east", Kind: domain.KindSite}},
		Edges:  []domain.Edge{},
		Combos: []domain.Combo{},
	}, got)
}
