package prometheus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

type Config struct {
	Address string
	// Token is sent as a bearer token when set.
	Token string
	// CAFile is an optional PEM bundle for the server certificate.
	CAFile          string
	Timeout         time.Duration
	LatencyQuantile float64
	Names           MetricNames
}

// Repo implements domain.MetricsRepo on the Prometheus HTTP API.
type Repo struct {
	api      v1.API
	timeout  time.Duration
	quantile float64
	names    MetricNames
}

func New(cfg Config) (*Repo, error) {
	if cfg.Address == "" {
		return nil, errors.New("prometheus address is required")
	}
	tlsConfig, err := loadTLSConfig(cfg.CAFile)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
	}
	if cfg.Token != "" {
		rt = config.NewAuthorizationCredentialsRoundTripper("Bearer", config.NewInlineSecret(cfg.Token), rt)
	}

	client, err := api.NewClient(api.Config{Address: cfg.Address, RoundTripper: rt})
	if err != nil {
		log.WithError(err).Warn("failed to create Prometheus client")
		return nil, fmt.Errorf("prometheus client: %w", err)
	}

	r := &Repo{
		api:      v1.NewAPI(client),
		timeout:  cfg.Timeout,
		quantile: cfg.LatencyQuantile,
		names:    cfg.Names,
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.quantile <= 0 || r.quantile >= 1 {
		r.quantile = 0.95
	}
	if r.names.Bytes == "" {
		r.names.Bytes = DefaultMetricNames.Bytes
	}
	if r.names.Latency == "" {
		r.names.Latency = DefaultMetricNames.Latency
	}
	return r, nil
}

func loadTLSConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	bundle, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("no certificates in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// QueryMetric runs an instant query, or a range query when q.Series is set.
func (r *Repo) QueryMetric(ctx context.Context, kind domain.MetricKind, q domain.MetricQuery) (domain.SampleStore, error) {
	expr, err := BuildQuery(kind, q, r.names, r.quantile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		value    model.Value
		warnings v1.Warnings
	)
	if q.Series != nil {
		rng := v1.Range{Start: q.Series.Start, End: q.Series.End, Step: q.Series.Step}
		value, warnings, err = r.api.QueryRange(ctx, expr, rng, v1.WithTimeout(r.timeout))
	} else {
		value, warnings, err = r.api.Query(ctx, expr, time.Now(), v1.WithTimeout(r.timeout))
	}
	logCtx := log.WithFields(log.Fields{"metric": kind, "query": expr})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	if len(warnings) > 0 {
		logCtx.WithField("warnings", warnings).Warn("prometheus returned warnings")
	}

	store, err := toSamples(value)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	logCtx.Debugf("prometheus returned %d samples", len(store))
	return store, nil
}
