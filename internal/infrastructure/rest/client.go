package rest

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const DefaultBasePath = "/api/v2alpha1"

type Config struct {
	URL string
	// BasePath is prefixed to every collection path.
	BasePath   string
	CACertPath string
	Timeout    time.Duration
}

// RESTClient builds requests against the inventory API.
type RESTClient struct {
	base   string
	client *http.Client
}

func NewClient(cfg Config) (*RESTClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("inventory URL is required")
	}
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &RESTClient{
		base:   strings.TrimRight(cfg.URL, "/") + "/" + strings.Trim(basePath, "/"),
		client: httpClient,
	}, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("error reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse root certificate")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (c *RESTClient) Get() *Request {
	return NewRequest(c).Verb(http.MethodGet)
}
