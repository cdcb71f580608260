package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/HaPhanBaoMinh/netobs/help"
	"github.com/HaPhanBaoMinh/netobs/internal/app"
	"github.com/HaPhanBaoMinh/netobs/internal/config"
	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/infrastructure/k8s"
	"github.com/HaPhanBaoMinh/netobs/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/netobs/internal/infrastructure/prometheus"
	"github.com/HaPhanBaoMinh/netobs/internal/infrastructure/rest"
	"github.com/HaPhanBaoMinh/netobs/internal/logging"
	"github.com/HaPhanBaoMinh/netobs/internal/server"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

// options holds the command line flags. Flags that were set override the
// environment; the rest leave the loaded config alone.
type options struct {
	envFile       string
	mock          bool
	inventoryURL  string
	prometheusURL string
	kubeconfig    string
	kubeContext   string
	namespace     string
	listen        string
	logLevel      string

	kind    string
	id      string
	service string
	groupBy string
	sort    string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "netobs",
		Short:         "Explore who talks to whom on an observed network",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runTUI(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.envFile, "env-file", ".env", "env file with NETOBS_* settings")
	pf.BoolVar(&o.mock, "mock", false, "use built-in sample data instead of live backends")
	pf.StringVar(&o.inventoryURL, "inventory-url", "", "inventory API base URL")
	pf.StringVar(&o.prometheusURL, "prometheus-url", "", "Prometheus base URL")
	pf.StringVar(&o.kubeconfig, "kubeconfig", "", "path to kubeconfig, used to discover unset URLs")
	pf.StringVar(&o.kubeContext, "context", "", "kube context")
	pf.StringVarP(&o.namespace, "namespace", "n", "", "namespace of the backend services")
	pf.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&o.sort, "sort", "", "sort rows by bytes, byteRate, latency or name")

	tui := &cobra.Command{
		Use:   "tui",
		Short: "Interactive pair dashboard (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runTUI(cmd)
		},
	}
	addFocalFlags(tui.Flags(), o)
	addFocalFlags(root.Flags(), o)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve pair buckets and graphs as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runServe(cmd)
		},
	}
	serve.Flags().StringVar(&o.listen, "listen", "", "listen address")

	pairs := &cobra.Command{
		Use:   "pairs",
		Short: "Print the pair buckets of one entity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runPairs(cmd)
		},
	}
	addFocalFlags(pairs.Flags(), o)
	_ = pairs.MarkFlagRequired("id")

	graph := &cobra.Command{
		Use:   "graph",
		Short: "Print the graph of a service or of one entity's neighbourhood",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runGraph(cmd)
		},
	}
	addFocalFlags(graph.Flags(), o)
	graph.Flags().StringVar(&o.service, "service", "", "service id")
	graph.Flags().StringVar(&o.groupBy, "group-by", "site", "service graph grouping: site or service")
	graph.MarkFlagsMutuallyExclusive("service", "id")
	graph.MarkFlagsOneRequired("service", "id")

	root.AddCommand(tui, serve, pairs, graph)
	return root
}

func addFocalFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.kind, "kind", string(domain.KindProcess), "focal entity kind: process, site or component")
	fs.StringVar(&o.id, "id", "", "focal entity id")
}

// apply copies the flags that were set on the command line into c.
func (o *options) apply(fs *pflag.FlagSet, c *config.Config) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	if fs.Changed("mock") {
		c.Mock = o.mock
	}
	set("inventory-url", &c.InventoryURL, o.inventoryURL)
	set("prometheus-url", &c.PrometheusURL, o.prometheusURL)
	set("kubeconfig", &c.Kubeconfig, o.kubeconfig)
	set("context", &c.KubeContext, o.kubeContext)
	set("namespace", &c.Namespace, o.namespace)
	set("log-level", &c.LogLevel, o.logLevel)
	set("listen", &c.ListenAddr, o.listen)
}

// setup loads the configuration, starts logging, and discovers unset
// backend URLs. Interactive runs log to a file so the screen stays clean.
func (o *options) setup(cmd *cobra.Command, logToFile bool) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	o.apply(cmd.Flags(), cfg)

	logOpts := logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON}
	if logToFile {
		logOpts.File = cfg.LogFile
	}
	closer, err := logging.Setup(logOpts)
	if err != nil {
		return nil, nil, err
	}

	if cfg.NeedsDiscovery() {
		if err := discover(cmd.Context(), cfg); err != nil {
			closer.Close()
			return nil, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, closer, nil
}

func discover(ctx context.Context, cfg *config.Config) error {
	kubeconfig := cfg.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = help.DefaultKubeconfig()
	}
	d, err := k8s.New(kubeconfig, cfg.KubeContext)
	if err != nil {
		return fmt.Errorf("discover backends: %w", err)
	}

	t := k8s.Target{Namespace: cfg.Namespace}
	if cfg.InventoryURL == "" {
		t.InventoryService = cfg.InventoryService
	}
	if cfg.PrometheusURL == "" {
		t.PrometheusService = cfg.PrometheusService
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	ep, err := d.Discover(ctx, t)
	if err != nil {
		return fmt.Errorf("discover backends in namespace %q: %w", cfg.Namespace, err)
	}
	if ep.InventoryURL != "" {
		cfg.InventoryURL = ep.InventoryURL
	}
	if ep.PrometheusURL != "" {
		cfg.PrometheusURL = ep.PrometheusURL
	}
	log.WithFields(log.Fields{
		"inventory":  cfg.InventoryURL,
		"prometheus": cfg.PrometheusURL,
	}).Info("discovered backends")
	return nil
}

func backends(cfg *config.Config) (domain.InventoryRepo, domain.MetricsRepo, error) {
	if cfg.Mock {
		m := mock.New()
		return m, m, nil
	}
	inv, err := rest.New(rest.Config{
		URL:        cfg.InventoryURL,
		BasePath:   cfg.InventoryBasePath,
		CACertPath: cfg.InventoryCAFile,
		Timeout:    cfg.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	prom, err := prometheus.New(prometheus.Config{
		Address:         cfg.PrometheusURL,
		Token:           cfg.PrometheusToken,
		CAFile:          cfg.PrometheusCAFile,
		Timeout:         cfg.RequestTimeout,
		LatencyQuantile: cfg.LatencyQuantile,
		Names:           prometheus.MetricNames{Bytes: cfg.BytesMetric, Latency: cfg.LatencyMetric},
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, prom, nil
}

func (o *options) pairOptions(cfg *config.Config) (topology.Options, error) {
	opts := topology.DefaultOptions()
	opts.Range = cfg.MetricRange
	opts.RateHistory = cfg.RateHistory
	opts.RateStep = cfg.RateStep
	if o.sort != "" {
		opts.Sort = topology.ParseSortKey(o.sort)
		if opts.Sort == topology.SortNone {
			return opts, fmt.Errorf("unknown sort %q", o.sort)
		}
	}
	return opts, nil
}

func (o *options) focal() (domain.FocalEntity, error) {
	kind := domain.EntityKind(o.kind)
	if !kind.Focal() {
		return domain.FocalEntity{}, fmt.Errorf("%w: %s", topology.ErrNotFocal, o.kind)
	}
	return domain.FocalEntity{Kind: kind, ID: o.id}, nil
}

func (o *options) runTUI(cmd *cobra.Command) error {
	cfg, closer, err := o.setup(cmd, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	inv, metrics, err := backends(cfg)
	if err != nil {
		return err
	}
	opts, err := o.pairOptions(cfg)
	if err != nil {
		return err
	}

	m := app.New(inv, topology.NewExplorer(inv, metrics), opts, cfg.PollInterval)
	if o.id != "" {
		focal, err := o.focal()
		if err != nil {
			return err
		}
		m = m.WithFocal(focal)
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (o *options) runServe(cmd *cobra.Command) error {
	cfg, closer, err := o.setup(cmd, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	inv, metrics, err := backends(cfg)
	if err != nil {
		return err
	}
	opts, err := o.pairOptions(cfg)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg.ListenAddr, inv, topology.NewExplorer(inv, metrics), server.WithDefaults(opts))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (o *options) runPairs(cmd *cobra.Command) error {
	cfg, closer, err := o.setup(cmd, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	inv, metrics, err := backends(cfg)
	if err != nil {
		return err
	}
	opts, err := o.pairOptions(cfg)
	if err != nil {
		return err
	}
	focal, err := o.focal()
	if err != nil {
		return err
	}
	d, err := topology.NewExplorer(inv, metrics).PairBuckets(cmd.Context(), focal, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), d)
}

func (o *options) runGraph(cmd *cobra.Command) error {
	cfg, closer, err := o.setup(cmd, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	inv, metrics, err := backends(cfg)
	if err != nil {
		return err
	}
	ex := topology.NewExplorer(inv, metrics)

	var g domain.Graph
	if o.service != "" {
		var rule topology.GroupingRule
		switch o.groupBy {
		case "site":
			rule = topology.GroupBySite
		case "service":
			rule = topology.GroupByService
		default:
			return fmt.Errorf("unknown group-by %q", o.groupBy)
		}
		g, err = ex.ServiceGraph(cmd.Context(), o.service, rule)
	} else {
		focal, ferr := o.focal()
		if ferr != nil {
			return ferr
		}
		opts, oerr := o.pairOptions(cfg)
		if oerr != nil {
			return oerr
		}
		g, err = ex.EntityGraph(cmd.Context(), focal, opts)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("nothing to draw: %w", err)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), g)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
