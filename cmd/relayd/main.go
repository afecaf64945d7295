// Command relayd is the demo binary and tick driver: it loads its
// configuration, optionally serves Prometheus metrics, runs an in-process
// loopback demo pair, and shuts down gracefully on SIGINT/SIGTERM.
// Grounded on ventosilenzioso-go-raknet's core/main.go (banner, config
// load, signal-driven shutdown), replacing its bare main()+signal channel
// with a cobra.Command and its hardcoded loadConfig() with envconfig.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"relaynet/pkg/rlog"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var metricsAddr string
	var tickInterval time.Duration
	var demo bool

	cmd := &cobra.Command{
		Use:   "relayd",
		Short: "relaynet demo binary and tick driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("tick-interval") {
				cfg.TickInterval = tickInterval
			}
			if cmd.Flags().Changed("demo") {
				cfg.Demo = demo
			}
			return run(cfg)
		},
	}

	var flags *pflag.FlagSet = cmd.Flags()
	flags.StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on")
	flags.DurationVar(&tickInterval, "tick-interval", 0, "override the configured tick interval")
	flags.BoolVar(&demo, "demo", false, "run the in-process loopback demo pair")
	return cmd
}

func loadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func run(cfg Config) error {
	log := rlog.New()
	rlog.Banner("relaynet", version)
	rlog.Section("startup")
	log.Info("configuration loaded", "metrics_addr", cfg.MetricsAddr, "tick_interval", cfg.TickInterval, "demo", cfg.Demo)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "err", err)
			}
		}()
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	if cfg.Demo {
		pair, err := newDemoPair(log)
		if err != nil {
			return err
		}
		go func() {
			defer close(done)
			pair.run(cfg.TickInterval, stop)
		}()
	} else {
		close(done)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Warn("received signal, shutting down", "signal", sig)

	close(stop)
	<-done

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}

	log.Info("shutdown complete")
	return nil
}
