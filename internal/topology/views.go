package topology

import (
	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// BuildServiceGraph lays out one service: every listener feeds the service,
// the service feeds every connector, and a connector bound to a process feeds
// that process. Nodes are grouped by site unless other rules are given.
func BuildServiceGraph(svc domain.Service, listeners []domain.Listener, connectors []domain.Connector, rules ...GroupingRule) domain.Graph {
	if len(rules) == 0 {
		rules = []GroupingRule{GroupBySite}
	}

	entities := []GraphEntity{{ID: svc.ID, Name: svc.Name, Kind: domain.KindService}}
	var rels []domain.EnrichedPair

	for _, l := range listeners {
		entities = append(entities, GraphEntity{
			ID:          l.ID,
			Name:        l.Name,
			Kind:        domain.KindListener,
			SiteID:      l.SiteID,
			SiteName:    l.SiteName,
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
		})
		rels = append(rels, link(
			GraphEntity{ID: l.ID, Name: l.Name, SiteID: l.SiteID, SiteName: l.SiteName},
			GraphEntity{ID: svc.ID, Name: svc.Name},
			protocolOr(l.Protocol, svc.Protocol),
		))
	}

	for _, c := range connectors {
		entities = append(entities, GraphEntity{
			ID:          c.ID,
			Name:        c.Name,
			Kind:        domain.KindConnector,
			SiteID:      c.SiteID,
			SiteName:    c.SiteName,
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
		})
		proto := protocolOr(c.Protocol, svc.Protocol)
		rels = append(rels, link(
			GraphEntity{ID: svc.ID, Name: svc.Name},
			GraphEntity{ID: c.ID, Name: c.Name, SiteID: c.SiteID, SiteName: c.SiteName},
			proto,
		))
		if c.ProcessID == "" {
			continue
		}
		entities = append(entities, GraphEntity{
			ID:       c.ProcessID,
			Name:     c.ProcessName,
			Kind:     domain.KindProcess,
			SiteID:   c.SiteID,
			SiteName: c.SiteName,
		})
		rels = append(rels, link(
			GraphEntity{ID: c.ID, Name: c.Name, SiteID: c.SiteID, SiteName: c.SiteName},
			GraphEntity{ID: c.ProcessID, Name: c.ProcessName, SiteID: c.SiteID, SiteName: c.SiteName},
			proto,
		))
	}

	return BuildGraph(entities, rels, rules...)
}

// BuildEntityGraph draws the neighbourhood of a focal entity from its buckets.
// Server rows already point away from the focal entity; client rows are turned
// back so their edges point at it.
func BuildEntityGraph(focal domain.FocalEntity, b domain.PairBuckets) domain.Graph {
	servers := concat(b.TCPServers, b.HTTPServers, b.RemoteServers)
	clients := Invert(concat(b.TCPClients, b.HTTPClients, b.RemoteClients))

	entities := []GraphEntity{{ID: focal.ID, Name: focal.Name, Kind: focal.Kind}}
	for _, p := range servers {
		entities = append(entities, GraphEntity{
			ID:       p.DestinationID,
			Name:     p.DestinationName,
			Kind:     focal.Kind,
			SiteID:   p.DestinationSiteID,
			SiteName: p.DestinationSiteName,
		})
	}
	for _, p := range clients {
		entities = append(entities, GraphEntity{
			ID:       p.SourceID,
			Name:     p.SourceName,
			Kind:     focal.Kind,
			SiteID:   p.SourceSiteID,
			SiteName: p.SourceSiteName,
		})
	}

	var rules []GroupingRule
	if focal.Kind == domain.KindProcess {
		rules = append(rules, GroupBySite)
	}
	return BuildGraph(entities, append(servers, clients...), rules...)
}

func link(src, dst GraphEntity, proto domain.Protocol) domain.EnrichedPair {
	return domain.EnrichedPair{Pair: domain.Pair{
		SourceID:            src.ID,
		SourceName:          src.Name,
		SourceSiteID:        src.SiteID,
		SourceSiteName:      src.SiteName,
		DestinationID:       dst.ID,
		DestinationName:     dst.Name,
		DestinationSiteID:   dst.SiteID,
		DestinationSiteName: dst.SiteName,
		Protocol:            proto,
	}}
}

func protocolOr(p, fallback domain.Protocol) domain.Protocol {
	if p == domain.ProtocolUnknown {
		return fallback
	}
	return p
}

func concat(parts ...[]domain.EnrichedPair) []domain.EnrichedPair {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]domain.EnrichedPair, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
