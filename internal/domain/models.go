package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// Protocol is the observed transport of a pair. ProtocolUnknown means the
// counterpart sits outside the observed network (a "remote" pair).
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolTCP
	ProtocolHTTP
	ProtocolHTTP2
)

func ParseProtocol(s string) Protocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return ProtocolTCP
	case "http", "http1", "http/1", "http/1.1":
		return ProtocolHTTP
	case "http2", "http/2", "h2":
		return ProtocolHTTP2
	default:
		return ProtocolUnknown
	}
}

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolHTTP:
		return "http1"
	case ProtocolHTTP2:
		return "http2"
	default:
		return ""
	}
}

func (p Protocol) IsHTTP() bool   { return p == ProtocolHTTP || p == ProtocolHTTP2 }
func (p Protocol) IsRemote() bool { return p == ProtocolUnknown }

func (p Protocol) MarshalJSON() ([]byte, error) {
	if p == ProtocolUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(p.String())
}

func (p *Protocol) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*p = ProtocolUnknown
		return nil
	}
	*p = ParseProtocol(*s)
	return nil
}

// EntityKind names an inventory collection. Process, site and component can
// be focal; the others only appear as graph nodes.
type EntityKind string

const (
	KindProcess   EntityKind = "process"
	KindSite      EntityKind = "site"
	KindComponent EntityKind = "component"
	KindService   EntityKind = "service"
	KindListener  EntityKind = "listener"
	KindConnector EntityKind = "connector"
)

// SourceLabel is the metric label carrying the source entity name for this kind.
func (k EntityKind) SourceLabel() string {
	switch k {
	case KindSite:
		return "sourceSite"
	case KindComponent:
		return "sourceComponent"
	default:
		return "sourceProcess"
	}
}

// DestLabel is the metric label carrying the destination entity name for this kind.
func (k EntityKind) DestLabel() string {
	switch k {
	case KindSite:
		return "destSite"
	case KindComponent:
		return "destComponent"
	default:
		return "destProcess"
	}
}

func (k EntityKind) Focal() bool {
	return k == KindProcess || k == KindSite || k == KindComponent
}

// Pair is one directed inventory relationship. Identity is (SourceID, DestinationID).
type Pair struct {
	ID                           string   `json:"identity,omitempty"`
	SourceID                     string   `json:"sourceId"`
	SourceName                   string   `json:"sourceName"`
	DestinationID                string   `json:"destinationId"`
	DestinationName              string   `json:"destinationName"`
	SourceSiteID                 string   `json:"sourceSiteId,omitempty"`
	SourceSiteName               string   `json:"sourceSiteName,omitempty"`
	DestinationSiteID            string   `json:"destinationSiteId,omitempty"`
	DestinationSiteName          string   `json:"destinationSiteName,omitempty"`
	Protocol                     Protocol `json:"protocol"`
	ObservedApplicationProtocols string   `json:"observedApplicationProtocols,omitempty"`
}

type EnrichedPair struct {
	Pair
	Bytes    float64 `json:"bytes"`
	ByteRate float64 `json:"byteRate"`
	Latency  float64 `json:"latency"`
}

// PairBuckets partitions the client and server rows of a focal entity.
type PairBuckets struct {
	TCPClients    []EnrichedPair `json:"tcpClients"`
	TCPServers    []EnrichedPair `json:"tcpServers"`
	HTTPClients   []EnrichedPair `json:"httpClients"`
	HTTPServers   []EnrichedPair `json:"httpServers"`
	RemoteClients []EnrichedPair `json:"remoteClients"`
	RemoteServers []EnrichedPair `json:"remoteServers"`
}

func (b PairBuckets) Clients() int {
	return len(b.TCPClients) + len(b.HTTPClients) + len(b.RemoteClients)
}

func (b PairBuckets) Servers() int {
	return len(b.TCPServers) + len(b.HTTPServers) + len(b.RemoteServers)
}

type FocalEntity struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name"`
}

type MetricKind string

const (
	MetricBytes    MetricKind = "bytes"
	MetricByteRate MetricKind = "byteRate"
	MetricLatency  MetricKind = "latency"
)

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Sample is one label-tagged value. Series is set for range queries, Value for instant ones.
type Sample struct {
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
	Series []Point           `json:"series,omitempty"`
}

// Scalar is the value used for correlation: the instant value, or the latest
// point of a series.
func (s Sample) Scalar() float64 {
	if len(s.Series) > 0 {
		return s.Series[len(s.Series)-1].Value
	}
	return s.Value
}

// SampleStore is the ordered result of one metrics query.
type SampleStore []Sample

type SeriesWindow struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

type MetricQuery struct {
	GroupBy  []string
	FilterBy map[string]string
	Range    time.Duration
	Series   *SeriesWindow
}

type TopologyMetricsRequest struct {
	ShowBytes    bool
	ShowByteRate bool
	ShowLatency  bool
	GroupBy      []string
	FilterBy     map[string]string
	Range        time.Duration
	// RateSeries asks for the byte rate as a range query ending now.
	RateSeries *SeriesWindow
}

type TopologyMetrics struct {
	Bytes    SampleStore
	ByteRate SampleStore
	Latency  SampleStore
	Errors   map[MetricKind]error
}

func (m TopologyMetrics) Store(kind MetricKind) SampleStore {
	switch kind {
	case MetricBytes:
		return m.Bytes
	case MetricByteRate:
		return m.ByteRate
	case MetricLatency:
		return m.Latency
	}
	return nil
}

type Site struct {
	ID       string `json:"identity"`
	Name     string `json:"name"`
	Platform string `json:"platform,omitempty"`
}

type Component struct {
	ID   string `json:"identity"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type Process struct {
	ID            string `json:"identity"`
	Name          string `json:"name"`
	SiteID        string `json:"parent"`
	SiteName      string `json:"parentName"`
	ComponentID   string `json:"groupIdentity,omitempty"`
	ComponentName string `json:"groupName,omitempty"`
	Role          string `json:"processRole,omitempty"`
	SourceHost    string `json:"sourceHost,omitempty"`
}

// Service is a routing key shared by listeners and connectors.
type Service struct {
	ID             string   `json:"identity"`
	Name           string   `json:"name"`
	Protocol       Protocol `json:"protocol"`
	ListenerCount  int      `json:"listenerCount"`
	ConnectorCount int      `json:"connectorCount"`
}

type Listener struct {
	ID         string   `json:"identity"`
	Name       string   `json:"name"`
	SiteID     string   `json:"parent"`
	SiteName   string   `json:"parentName"`
	RoutingKey string   `json:"routingKey"`
	ServiceID  string   `json:"serviceId,omitempty"`
	Protocol   Protocol `json:"protocol"`
	DestHost   string   `json:"destHost,omitempty"`
	DestPort   string   `json:"destPort,omitempty"`
}

type Connector struct {
	ID          string   `json:"identity"`
	Name        string   `json:"name"`
	SiteID      string   `json:"parent"`
	SiteName    string   `json:"parentName"`
	RoutingKey  string   `json:"routingKey"`
	ServiceID   string   `json:"serviceId,omitempty"`
	Protocol    Protocol `json:"protocol"`
	DestHost    string   `json:"destHost,omitempty"`
	DestPort    string   `json:"destPort,omitempty"`
	ProcessID   string   `json:"processId,omitempty"`
	ProcessName string   `json:"target,omitempty"`
}

type Node struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Kind     EntityKind `json:"kind"`
	SiteID   string     `json:"siteId,omitempty"`
	SiteName string     `json:"siteName,omitempty"`
}

type EdgeKey struct {
	SourceID      string
	DestinationID string
	Protocol      Protocol
}

type Edge struct {
	ID            string   `json:"id"`
	SourceID      string   `json:"source"`
	DestinationID string   `json:"target"`
	Protocol      Protocol `json:"protocol"`
	Bytes         float64  `json:"bytes"`
	ByteRate      float64  `json:"byteRate"`
	Latency       float64  `json:"latency"`
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, DestinationID: e.DestinationID, Protocol: e.Protocol}
}

// Combo is a named cluster of node ids, e.g. all nodes of one site.
type Combo struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	NodeIDs []string `json:"nodeIds"`
}

type Graph struct {
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
	Combos []Combo `json:"combos"`
}
