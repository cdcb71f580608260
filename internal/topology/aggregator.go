package topology

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// Aggregator issues the bytes, byte-rate and latency queries for a focal
// entity concurrently and bundles the results for correlation.
type Aggregator struct {
	metrics domain.MetricsRepo
}

func NewAggregator(metrics domain.MetricsRepo) *Aggregator {
	return &Aggregator{metrics: metrics}
}

// GetAllTopologyMetrics runs the enabled queries in parallel. A failed query
// leaves its store empty and is recorded in Errors without affecting the
// others, even when every enabled query failed. The returned error is non-nil
// only when ctx ended.
func (a *Aggregator) GetAllTopologyMetrics(ctx context.Context, req domain.TopologyMetricsRequest) (domain.TopologyMetrics, error) {
	out := domain.TopologyMetrics{
		Bytes:    domain.SampleStore{},
		ByteRate: domain.SampleStore{},
		Latency:  domain.SampleStore{},
	}

	base := domain.MetricQuery{
		GroupBy:  append([]string(nil), req.GroupBy...),
		FilterBy: copyLabels(req.FilterBy),
		Range:    req.Range,
	}

	type job struct {
		kind  domain.MetricKind
		query domain.MetricQuery
		dst   *domain.SampleStore
	}
	var jobs []job
	if req.ShowBytes {
		jobs = append(jobs, job{domain.MetricBytes, base, &out.Bytes})
	}
	if req.ShowByteRate {
		q := base
		q.Series = req.RateSeries
		jobs = append(jobs, job{domain.MetricByteRate, q, &out.ByteRate})
	}
	if req.ShowLatency {
		jobs = append(jobs, job{domain.MetricLatency, base, &out.Latency})
	}
	if len(jobs) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		errs = make(map[domain.MetricKind]error)
	)
	// Not errgroup.WithContext: one failing query must not cancel the rest.
	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			store, err := a.metrics.QueryMetric(ctx, j.kind, j.query)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"metric":   j.kind,
					"filterBy": j.query.FilterBy,
				}).Warn("metric query failed, using empty result")
				mu.Lock()
				errs[j.kind] = err
				mu.Unlock()
				return nil
			}
			if store == nil {
				store = domain.SampleStore{}
			}
			*j.dst = store
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		out.Errors = errs
	}
	// A cancelled caller is not a degraded metric.
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func copyLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
