package prometheus

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/common/model"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// MetricNames are the series the flow collector exports.
type MetricNames struct {
	Bytes   string
	Latency string
}

var DefaultMetricNames = MetricNames{
	Bytes:   "octets_total",
	Latency: "flow_latency_microseconds",
}

// BuildQuery renders the PromQL expression for one metric kind.
//
//	bytes:    sum by (g) (increase(octets_total{f}[r]))
//	byteRate: sum by (g) (rate(octets_total{f}[r]))
//	latency:  histogram_quantile(q, sum by (le, g) (rate(flow_latency_microseconds_bucket{f}[r])))
func BuildQuery(kind domain.MetricKind, q domain.MetricQuery, names MetricNames, quantile float64) (string, error) {
	rng := q.Range
	if rng <= 0 {
		rng = time.Minute
	}
	window := model.Duration(rng).String()
	filter := selector(q.FilterBy)

	switch kind {
	case domain.MetricBytes:
		return fmt.Sprintf("sum%s (increase(%s%s[%s]))", by(q.GroupBy), names.Bytes, filter, window), nil
	case domain.MetricByteRate:
		return fmt.Sprintf("sum%s (rate(%s%s[%s]))", by(q.GroupBy), names.Bytes, filter, window), nil
	case domain.MetricLatency:
		groups := append([]string{"le"}, q.GroupBy...)
		return fmt.Sprintf("histogram_quantile(%g, sum%s (rate(%s_bucket%s[%s])))",
			quantile, by(groups), names.Latency, filter, window), nil
	}
	return "", fmt.Errorf("unsupported metric kind %q", kind)
}

func by(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return " by (" + strings.Join(labels, ", ") + ")"
}

func selector(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	set := make(model.LabelSet, len(filter))
	for k, v := range filter {
		set[model.LabelName(k)] = model.LabelValue(v)
	}
	return set.String()
}

// toSamples converts a query result into a sample store. NaN and Inf
// become 0.
func toSamples(v model.Value) (domain.SampleStore, error) {
	store := domain.SampleStore{}
	switch res := v.(type) {
	case nil:
		return store, nil
	case model.Vector:
		for _, s := range res {
			store = append(store, domain.Sample{Labels: labels(s.Metric), Value: finite(s.Value)})
		}
	case model.Matrix:
		for _, ss := range res {
			sample := domain.Sample{Labels: labels(ss.Metric)}
			for _, p := range ss.Values {
				sample.Series = append(sample.Series, domain.Point{Timestamp: p.Timestamp.Time().UTC(), Value: finite(p.Value)})
			}
			store = append(store, sample)
		}
	case *model.Scalar:
		store = append(store, domain.Sample{Labels: map[string]string{}, Value: finite(res.Value)})
	default:
		return nil, fmt.Errorf("unexpected result type %s", v.Type())
	}
	return store, nil
}

func labels(m model.Metric) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k == model.MetricNameLabel {
			continue
		}
		out[string(k)] = string(v)
	}
	return out
}

func finite(v model.SampleValue) float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
