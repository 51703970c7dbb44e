package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/config"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/metrics"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/transport"
)

// deps holds what every command needs: the resolved configuration, a
// logger and a metrics collector.
type deps struct {
	cfg        *config.Config
	log        logger.Logger
	metrics    *metrics.Collector
	metricsOut string
}

// newDeps loads configuration, applies explicitly set flags and builds the
// logger.
func (o *rootOptions) newDeps(cmd *cobra.Command) (*deps, error) {
	path := o.configPath
	if path == "" {
		path = config.GetConfigPath("")
	}
	cfg, err := config.LoadHarness(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return nil, usageError(err)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.API.BaseURL = o.baseURL
	}
	if flags.Changed("retries") {
		cfg.API.Retries = o.retries
	}
	if flags.Changed("backoff") {
		cfg.API.Backoff = o.backoff
	}
	if flags.Changed("timeout") {
		cfg.API.Timeout = o.timeout
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if err = cfg.Validate(); err != nil {
		return nil, usageError(err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &deps{
		cfg:        cfg,
		log:        log.With(logger.String("command", cmd.Name())),
		metrics:    metrics.New(),
		metricsOut: o.metricsOut,
	}, nil
}

// client builds an API client with metrics and logging wired in.
func (d *deps) client() *hnapi.Client {
	tr := transport.New(
		transport.Config{
			Retries: d.cfg.API.Retries,
			Backoff: d.cfg.API.Backoff,
			Timeout: d.cfg.API.Timeout,
		},
		transport.WithRecorder(d.metrics),
		transport.WithLogger(d.log),
	)
	return hnapi.New(
		hnapi.WithBaseURL(d.cfg.API.BaseURL),
		hnapi.WithTransport(tr),
		hnapi.WithRecorder(d.metrics),
		hnapi.WithLogger(d.log),
	)
}

// close flushes metrics and the logger.
func (d *deps) close() {
	if d.metricsOut != "" {
		if err := d.metrics.WriteTextfile(d.metricsOut); err != nil {
			d.log.Warn("Failed to write metrics", logger.String("path", d.metricsOut), logger.Error(err))
		}
	}
	_ = d.log.Sync()
}

// run wraps a command body with dependency setup and teardown.
func (o *rootOptions) run(fn func(cmd *cobra.Command, args []string, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := o.newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()
		cmd.SetContext(logger.WithContext(cmd.Context(), d.log))
		return fn(cmd, args, d)
	}
}
