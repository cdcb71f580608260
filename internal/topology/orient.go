package topology

import (
	"sort"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// Invert swaps source and destination on every pair. Metric fields are copied
// unchanged, so Invert(Invert(xs)) equals xs.
func Invert(pairs []domain.EnrichedPair) []domain.EnrichedPair {
	out := make([]domain.EnrichedPair, len(pairs))
	for i, p := range pairs {
		p.SourceID, p.DestinationID = p.DestinationID, p.SourceID
		p.SourceName, p.DestinationName = p.DestinationName, p.SourceName
		p.SourceSiteID, p.DestinationSiteID = p.DestinationSiteID, p.SourceSiteID
		p.SourceSiteName, p.DestinationSiteName = p.DestinationSiteName, p.SourceSiteName
		out[i] = p
	}
	return out
}

// Classify partitions client and server rows by protocol. Each input row lands
// in exactly one bucket and input order is kept within a bucket.
func Classify(clientPairs, serverPairs []domain.EnrichedPair) domain.PairBuckets {
	b := domain.PairBuckets{
		TCPClients:    []domain.EnrichedPair{},
		TCPServers:    []domain.EnrichedPair{},
		HTTPClients:   []domain.EnrichedPair{},
		HTTPServers:   []domain.EnrichedPair{},
		RemoteClients: []domain.EnrichedPair{},
		RemoteServers: []domain.EnrichedPair{},
	}
	for _, p := range clientPairs {
		switch {
		case p.Protocol == domain.ProtocolTCP:
			b.TCPClients = append(b.TCPClients, p)
		case p.Protocol.IsHTTP():
			b.HTTPClients = append(b.HTTPClients, p)
		default:
			b.RemoteClients = append(b.RemoteClients, p)
		}
	}
	for _, p := range serverPairs {
		switch {
		case p.Protocol == domain.ProtocolTCP:
			b.TCPServers = append(b.TCPServers, p)
		case p.Protocol.IsHTTP():
			b.HTTPServers = append(b.HTTPServers, p)
		default:
			b.RemoteServers = append(b.RemoteServers, p)
		}
	}
	return b
}

// SortKey names the metric rows are ordered by.
type SortKey string

const (
	SortNone     SortKey = ""
	SortBytes    SortKey = "bytes"
	SortByteRate SortKey = "byteRate"
	SortLatency  SortKey = "latency"
	SortName     SortKey = "name"
)

// ParseSortKey maps a user-supplied key to a SortKey, SortNone when unknown.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortBytes, SortByteRate, SortLatency, SortName:
		return SortKey(s)
	}
	return SortNone
}

// SortPairs orders rows in place, largest metric first (names ascending).
// Ties keep their relative order.
func SortPairs(pairs []domain.EnrichedPair, by SortKey) {
	if by == SortNone {
		return
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		switch by {
		case SortBytes:
			return a.Bytes > b.Bytes
		case SortByteRate:
			return a.ByteRate > b.ByteRate
		case SortLatency:
			return a.Latency > b.Latency
		default:
			return a.DestinationName < b.DestinationName
		}
	})
}

// SortBuckets applies SortPairs to every bucket.
func SortBuckets(b domain.PairBuckets, by SortKey) {
	for _, rows := range [][]domain.EnrichedPair{
		b.TCPClients, b.TCPServers, b.HTTPClients, b.HTTPServers, b.RemoteClients, b.RemoteServers,
	} {
		SortPairs(rows, by)
	}
}
