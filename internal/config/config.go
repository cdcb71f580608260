package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config is read from NETOBS_* environment variables, optionally seeded from a
// .env file, and then overridden by command line flags.
type Config struct {
	// Inventory REST API. When empty it is discovered from Kubernetes.
	InventoryURL      string `envconfig:"INVENTORY_URL"`
	InventoryBasePath string `envconfig:"INVENTORY_BASE_PATH" default:"/api/v2alpha1"`
	InventoryCAFile   string `envconfig:"INVENTORY_CA_FILE"`

	// Prometheus HTTP API. When empty it is discovered from Kubernetes.
	PrometheusURL    string `envconfig:"PROMETHEUS_URL"`
	PrometheusToken  string `envconfig:"PROMETHEUS_TOKEN"`
	PrometheusCAFile string `envconfig:"PROMETHEUS_CA_FILE"`

	BytesMetric     string  `envconfig:"BYTES_METRIC" default:"octets_total"`
	LatencyMetric   string  `envconfig:"LATENCY_METRIC" default:"flow_latency_microseconds"`
	LatencyQuantile float64 `envconfig:"LATENCY_QUANTILE" default:"0.95"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	// MetricRange is the lookback window of increase() and rate().
	MetricRange time.Duration `envconfig:"METRIC_RANGE" default:"1m"`
	// RateHistory and RateStep size the byte-rate sparklines. Zero disables them.
	RateHistory time.Duration `envconfig:"RATE_HISTORY" default:"10m"`
	RateStep    time.Duration `envconfig:"RATE_STEP" default:"30s"`

	Kubeconfig        string `envconfig:"KUBECONFIG_PATH"`
	KubeContext       string `envconfig:"KUBE_CONTEXT"`
	Namespace         string `envconfig:"NAMESPACE" default:"default"`
	InventoryService  string `envconfig:"INVENTORY_SERVICE" default:"network-observer"`
	PrometheusService string `envconfig:"PROMETHEUS_SERVICE" default:"prometheus"`

	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8088"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON"`
	LogFile  string `envconfig:"LOG_FILE"`

	Mock bool `envconfig:"MOCK"`
}

const prefix = "NETOBS"

// Load reads an optional env file and then the environment. A missing env
// file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	c := &Config{}
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, err
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(os.TempDir(), "netobs.log")
	}
	return c, nil
}

// MustLoad is Load for main packages.
func MustLoad(envFile string) *Config {
	c, err := Load(envFile)
	if err != nil {
		log.Panicf("Error loading configuration: %v", err)
	}
	return c
}

// NeedsDiscovery reports whether a backend URL must come from Kubernetes.
func (c *Config) NeedsDiscovery() bool {
	return !c.Mock && (c.InventoryURL == "" || c.PrometheusURL == "")
}

// Validate checks the settings that the backends rely on. It is called after
// flags are applied and, if needed, endpoints discovered.
func (c *Config) Validate() error {
	var errs []error
	if !c.Mock {
		errs = append(errs, checkURL("inventory URL", c.InventoryURL), checkURL("prometheus URL", c.PrometheusURL))
	}
	if c.PollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("poll interval %s is below 100ms", c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.MetricRange < time.Second {
		errs = append(errs, fmt.Errorf("metric range %s is below 1s", c.MetricRange))
	}
	if c.RateHistory < 0 || c.RateStep < 0 || (c.RateHistory > 0 && c.RateStep > c.RateHistory) {
		errs = append(errs, fmt.Errorf("rate step %s does not fit rate history %s", c.RateStep, c.RateHistory))
	}
	if c.LatencyQuantile <= 0 || c.LatencyQuantile >= 1 {
		errs = append(errs, fmt.Errorf("latency quantile %g is outside (0, 1)", c.LatencyQuantile))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkURL(what, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is not set", what)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", what, raw)
	}
	return nil
}
