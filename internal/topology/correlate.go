package topology

import (
	"slices"
	"time"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// PairField selects which display name of a pair is matched against a metric label.
type PairField int

const (
	SourceName PairField = iota
	DestinationName
)

func (f PairField) value(p domain.Pair) string {
	if f == SourceName {
		return p.SourceName
	}
	return p.DestinationName
}

// Correlate attaches the metric of the given kind to every pair. A sample
// matches when labels[labelKey] equals the selected pair name exactly; matching
// samples are summed, and pairs without a match get 0. Only the field for kind
// is written.
func Correlate(pairs []domain.EnrichedPair, store domain.SampleStore, kind domain.MetricKind, labelKey string, field PairField) []domain.EnrichedPair {
	totals := make(map[string]float64, len(store))
	for _, s := range store {
		name, ok := s.Labels[labelKey]
		if !ok {
			continue
		}
		totals[name] += finite(s.Scalar())
	}

	out := make([]domain.EnrichedPair, len(pairs))
	for i, p := range pairs {
		v := totals[field.value(p.Pair)]
		switch kind {
		case domain.MetricBytes:
			p.Bytes = v
		case domain.MetricByteRate:
			p.ByteRate = v
		case domain.MetricLatency:
			p.Latency = v
		}
		out[i] = p
	}
	return out
}

// Enrich lifts inventory pairs and runs one correlation pass per metric kind.
func Enrich(pairs []domain.Pair, m domain.TopologyMetrics, labelKey string, field PairField) []domain.EnrichedPair {
	out := Lift(pairs)
	out = Correlate(out, m.Bytes, domain.MetricBytes, labelKey, field)
	out = Correlate(out, m.ByteRate, domain.MetricByteRate, labelKey, field)
	return Correlate(out, m.Latency, domain.MetricLatency, labelKey, field)
}

// Lift wraps inventory pairs with zeroed metrics.
func Lift(pairs []domain.Pair) []domain.EnrichedPair {
	out := make([]domain.EnrichedPair, len(pairs))
	for i, p := range pairs {
		out[i] = domain.EnrichedPair{Pair: p}
	}
	return out
}

// SeriesByName returns the series of every sample keyed by labels[labelKey],
// summing when several samples share a name. Timestamped points are merged by
// timestamp into the union of all timestamps; series without timestamps are
// aligned on their newest point. The result keeps the longest length.
func SeriesByName(store domain.SampleStore, labelKey string) map[string][]float64 {
	groups := make(map[string][][]domain.Point)
	for _, s := range store {
		name, ok := s.Labels[labelKey]
		if !ok || len(s.Series) == 0 {
			continue
		}
		groups[name] = append(groups[name], s.Series)
	}

	out := make(map[string][]float64, len(groups))
	for name, series := range groups {
		if timestamped(series) {
			out[name] = mergeByTime(series)
		} else {
			out[name] = mergeRightAligned(series)
		}
	}
	return out
}

func timestamped(series [][]domain.Point) bool {
	for _, pts := range series {
		for _, pt := range pts {
			if pt.Timestamp.IsZero() {
				return false
			}
		}
	}
	return true
}

func mergeByTime(series [][]domain.Point) []float64 {
	sums := make(map[time.Time]float64)
	var stamps []time.Time
	for _, pts := range series {
		for _, pt := range pts {
			ts := pt.Timestamp.UTC()
			if _, ok := sums[ts]; !ok {
				stamps = append(stamps, ts)
			}
			sums[ts] += finite(pt.Value)
		}
	}
	slices.SortFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })

	out := make([]float64, len(stamps))
	for i, ts := range stamps {
		out[i] = sums[ts]
	}
	return out
}

func mergeRightAligned(series [][]domain.Point) []float64 {
	n := 0
	for _, pts := range series {
		n = max(n, len(pts))
	}
	out := make([]float64, n)
	for _, pts := range series {
		off := n - len(pts)
		for i, pt := range pts {
			out[off+i] += finite(pt.Value)
		}
	}
	return out
}
