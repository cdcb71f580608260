package mock

import (
	_ "embed"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// octets.json is a captured instant query of
// sum by (sourceProcess, destProcess) (increase(octets_total[1h])).
//
//go:embed octets.json
var octetsJSON []byte

var sites = []domain.Site{
	{ID: "site-east", Name: "east", Platform: "kubernetes"},
	{ID: "site-west", Name: "west", Platform: "podman"},
}

var components = []domain.Component{
	{ID: "comp-loadgen", Name: "loadgen", Role: "external"},
	{ID: "comp-web", Name: "web", Role: "external"},
	{ID: "comp-api", Name: "api", Role: "internal"},
	{ID: "comp-db", Name: "database", Role: "internal"},
	{ID: "comp-payments", Name: "payments", Role: "internal"},
	{ID: "comp-remote", Name: "remote", Role: "remote"},
}

var processes = []domain.Process{
	{ID: "proc-loadgen", Name: "loadgen-5c7b", SiteID: "site-east", SiteName: "east", ComponentID: "comp-loadgen", ComponentName: "loadgen", Role: "external", SourceHost: "10.42.0.17"},
	{ID: "proc-frontend", Name: "frontend-7d9f", SiteID: "site-east", SiteName: "east", ComponentID: "comp-web", ComponentName: "web", Role: "external", SourceHost: "10.42.0.21"},
	{ID: "proc-api", Name: "api-6b4d", SiteID: "site-east", SiteName: "east", ComponentID: "comp-api", ComponentName: "api", Role: "internal", SourceHost: "10.42.0.33"},
	{ID: "proc-postgres", Name: "postgres-0", SiteID: "site-west", SiteName: "west", ComponentID: "comp-db", ComponentName: "database", Role: "internal", SourceHost: "192.168.1.40"},
	{ID: "proc-payments", Name: "payments-84fc", SiteID: "site-west", SiteName: "west", ComponentID: "comp-payments", ComponentName: "payments", Role: "internal", SourceHost: "192.168.1.41"},
	{ID: "proc-stripe", Name: "api.stripe.com", SiteID: "site-west", SiteName: "west", ComponentID: "comp-remote", ComponentName: "remote", Role: "remote"},
}

// processLinks are the observed process pairs; site and component pairs are
// derived from them.
var processLinks = []struct {
	src, dst string
	proto    domain.Protocol
	appProto string
}{
	{"proc-loadgen", "proc-frontend", domain.ProtocolHTTP, "http1"},
	{"proc-frontend", "proc-api", domain.ProtocolHTTP2, "http2"},
	{"proc-frontend", "proc-postgres", domain.ProtocolTCP, ""},
	{"proc-api", "proc-postgres", domain.ProtocolTCP, ""},
	{"proc-api", "proc-payments", domain.ProtocolHTTP, "http1"},
	{"proc-payments", "proc-stripe", domain.ProtocolUnknown, ""},
}

var services = []domain.Service{
	{ID: "svc-frontend", Name: "frontend:8080", Protocol: domain.ProtocolHTTP},
	{ID: "svc-postgres", Name: "postgres:5432", Protocol: domain.ProtocolTCP},
	{ID: "svc-payments", Name: "payments:9000", Protocol: domain.ProtocolHTTP},
}

var listeners = []domain.Listener{
	{ID: "lst-frontend-east", Name: "frontend", SiteID: "site-east", SiteName: "east", RoutingKey: "frontend:8080", ServiceID: "svc-frontend", Protocol: domain.ProtocolHTTP, DestHost: "frontend", DestPort: "8080"},
	{ID: "lst-postgres-east", Name: "postgres", SiteID: "site-east", SiteName: "east", RoutingKey: "postgres:5432", ServiceID: "svc-postgres", Protocol: domain.ProtocolTCP, DestHost: "postgres", DestPort: "5432"},
	{ID: "lst-postgres-west", Name: "postgres", SiteID: "site-west", SiteName: "west", RoutingKey: "postgres:5432", ServiceID: "svc-postgres", Protocol: domain.ProtocolTCP, DestHost: "postgres", DestPort: "5432"},
	{ID: "lst-payments-east", Name: "payments", SiteID: "site-east", SiteName: "east", RoutingKey: "payments:9000", ServiceID: "svc-payments", Protocol: domain.ProtocolHTTP, DestHost: "payments", DestPort: "9000"},
}

var connectors = []domain.Connector{
	{ID: "con-frontend-east", Name: "frontend", SiteID: "site-east", SiteName: "east", RoutingKey: "frontend:8080", ServiceID: "svc-frontend", Protocol: domain.ProtocolHTTP, DestHost: "10.42.0.21", DestPort: "8080", ProcessID: "proc-frontend", ProcessName: "frontend-7d9f"},
	{ID: "con-postgres-west", Name: "postgres", SiteID: "site-west", SiteName: "west", RoutingKey: "postgres:5432", ServiceID: "svc-postgres", Protocol: domain.ProtocolTCP, DestHost: "192.168.1.40", DestPort: "5432", ProcessID: "proc-postgres", ProcessName: "postgres-0"},
	{ID: "con-postgres-replica", Name: "postgres-replica", SiteID: "site-east", SiteName: "east", RoutingKey: "postgres:5432", ServiceID: "svc-postgres", Protocol: domain.ProtocolTCP, DestHost: "pg-replica.internal", DestPort: "5432"},
	{ID: "con-payments-west", Name: "payments", SiteID: "site-west", SiteName: "west", RoutingKey: "payments:9000", ServiceID: "svc-payments", Protocol: domain.ProtocolHTTP, DestHost: "192.168.1.41", DestPort: "9000", ProcessID: "proc-payments", ProcessName: "payments-84fc"},
}
