// Package main provides the hfcore command: daily dose aggregation and
// key-point messaging over validated FHIR records.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/go-hfcore/internal/config"
	"github.com/drfirst/go-hfcore/internal/logging"
	"github.com/drfirst/go-hfcore/internal/observability/metrics"
	"github.com/drfirst/go-hfcore/internal/observability/tracing"
)

const serviceName = "hfcore"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracing  *tracing.Provider
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Heart failure medication dosing and key-point messaging",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a config file (HFCORE_* env vars override it)")

	root.AddCommand(doseCmd(a))
	root.AddCommand(keypointsCmd(a))
	root.AddCommand(coverageCmd(a))
	root.AddCommand(evaluateCmd(a))

	// Post-run hooks are skipped when RunE fails, so teardown is chained
	// onto each subcommand instead.
	for _, cmd := range root.Commands() {
		a.withTeardown(cmd)
	}
	return root
}

func (a *app) withTeardown(cmd *cobra.Command) {
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if terr := a.teardown(cmd.Context()); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig(serviceName)
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		tcfg.SampleRate = cfg.TraceSampleRate
		a.tracing, err = tracing.Init(contextOrBackground(ctx), tcfg)
		if err != nil {
			return err
		}
		a.logger.Debug("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.cfg == nil {
		return nil
	}
	defer a.logger.Sync() //nolint:errcheck

	var err error
	if a.cfg.MetricsFile != "" {
		err = metrics.WriteTextfile(a.cfg.MetricsFile, a.registry)
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(contextOrBackground(ctx), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
	return err
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
