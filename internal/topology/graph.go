package topology

import (
	log "github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// GraphEntity is anything that can become a graph node.
type GraphEntity struct {
	ID            string
	Name          string
	Kind          domain.EntityKind
	SiteID        string
	SiteName      string
	ComponentID   string
	ComponentName string
	ServiceID     string
	ServiceName   string
}

// GroupingRule assigns entities to combos of one type. Group returns false for
// entities that belong to no combo of this type.
type GroupingRule struct {
	Type  string
	Group func(e GraphEntity) (id, label string, ok bool)
}

var (
	GroupBySite = GroupingRule{
		Type: "site",
		Group: func(e GraphEntity) (string, string, bool) {
			if e.SiteID == "" || e.Kind == domain.KindSite {
				return "", "", false
			}
			return e.SiteID, e.SiteName, true
		},
	}

	GroupByComponent = GroupingRule{
		Type: "component",
		Group: func(e GraphEntity) (string, string, bool) {
			if e.ComponentID == "" || e.Kind != domain.KindProcess {
				return "", "", false
			}
			return e.ComponentID, e.ComponentName, true
		},
	}

	// GroupByService clusters the listeners and connectors of one service.
	GroupByService = GroupingRule{
		Type: "service",
		Group: func(e GraphEntity) (string, string, bool) {
			if e.ServiceID == "" || (e.Kind != domain.KindListener && e.Kind != domain.KindConnector) {
				return "", "", false
			}
			return e.ServiceID, e.ServiceName, true
		},
	}
)

type graphBuilder struct {
	nodes     []domain.Node
	entities  []GraphEntity
	nodeIndex map[string]int
	edges     []domain.Edge
	edgeIndex map[domain.EdgeKey]int
}

// BuildGraph turns entities and relationships into a node/edge/combo graph.
// Nodes are unique by id: entities come first, then any relationship endpoint
// not already known. Edges are unique by (source, destination, protocol) and
// colliding relationships have their metrics summed. A graph without edges
// holds the given entities only and no combos.
func BuildGraph(entities []GraphEntity, relationships []domain.EnrichedPair, rules ...GroupingRule) domain.Graph {
	b := &graphBuilder{
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[domain.EdgeKey]int),
	}
	for _, e := range entities {
		b.trackNode(e)
	}
	for _, r := range relationships {
		b.trackRelationship(r)
	}

	g := domain.Graph{
		Nodes:  b.nodes,
		Edges:  b.edges,
		Combos: []domain.Combo{},
	}
	if g.Nodes == nil {
		g.Nodes = []domain.Node{}
	}
	if g.Edges == nil {
		g.Edges = []domain.Edge{}
	}
	if len(b.edges) > 0 {
		for _, rule := range rules {
			g.Combos = append(g.Combos, b.combos(rule)...)
		}
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		for _, n := range g.Nodes {
			log.Debugf("graph node %s (%s)", n.ID, n.Kind)
		}
		for _, e := range g.Edges {
			log.Debugf("graph edge %s", e.ID)
		}
	}
	return g
}

func (b *graphBuilder) trackNode(e GraphEntity) {
	if e.ID == "" {
		return
	}
	if _, ok := b.nodeIndex[e.ID]; ok {
		return
	}
	label := e.Name
	if label == "" {
		label = e.ID
	}
	b.nodeIndex[e.ID] = len(b.nodes)
	b.nodes = append(b.nodes, domain.Node{
		ID:       e.ID,
		Label:    label,
		Kind:     e.Kind,
		SiteID:   e.SiteID,
		SiteName: e.SiteName,
	})
	b.entities = append(b.entities, e)
}

func (b *graphBuilder) trackRelationship(r domain.EnrichedPair) {
	if r.SourceID == "" || r.DestinationID == "" {
		log.WithField("pair", r.Pair).Debug("skipping relationship without endpoint ids")
		return
	}
	b.trackNode(GraphEntity{ID: r.SourceID, Name: r.SourceName, SiteID: r.SourceSiteID, SiteName: r.SourceSiteName})
	b.trackNode(GraphEntity{ID: r.DestinationID, Name: r.DestinationName, SiteID: r.DestinationSiteID, SiteName: r.DestinationSiteName})

	key := domain.EdgeKey{SourceID: r.SourceID, DestinationID: r.DestinationID, Protocol: r.Protocol}
	if i, ok := b.edgeIndex[key]; ok {
		e := &b.edges[i]
		e.Bytes += r.Bytes
		e.ByteRate += r.ByteRate
		e.Latency += r.Latency
		return
	}
	b.edgeIndex[key] = len(b.edges)
	b.edges = append(b.edges, domain.Edge{
		ID:            edgeID(key),
		SourceID:      r.SourceID,
		DestinationID: r.DestinationID,
		Protocol:      r.Protocol,
		Bytes:         r.Bytes,
		ByteRate:      r.ByteRate,
		Latency:       r.Latency,
	})
}

func (b *graphBuilder) combos(rule GroupingRule) []domain.Combo {
	var out []domain.Combo
	index := make(map[string]int)
	for _, e := range b.entities {
		id, label, ok := rule.Group(e)
		if !ok {
			continue
		}
		i, seen := index[id]
		if !seen {
			if label == "" {
				label = id
			}
			i = len(out)
			index[id] = i
			out = append(out, domain.Combo{ID: rule.Type + ":" + id, Type: rule.Type, Label: label})
		}
		out[i].NodeIDs = append(out[i].NodeIDs, e.ID)
	}
	return out
}

func edgeID(k domain.EdgeKey) string {
	id := k.SourceID + "->" + k.DestinationID
	if p := k.Protocol.String(); p != "" {
		id += "/" + p
	}
	return id
}
