package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vitwit/x402core/config"
	"github.com/vitwit/x402core/logger"
	"github.com/vitwit/x402core/metrics"
	"github.com/vitwit/x402core/middleware"
	"github.com/vitwit/x402core/verification"
)

func newServeCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve paid HTTP endpoints",
		Long: `Serve the routes listed in a TOML config file, each behind an x402 payment.

EXAMPLES:
  x402 serve --config x402.toml
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "x402.toml", "config file")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.NewZapLogger(cfg.LogLevel)
	if z, ok := log.(*logger.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
	}

	router, err := newRouter(cfg, log, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", map[string]any{"addr": cfg.Listen, "routes": len(cfg.Routes)})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter mounts every configured route behind the payment middleware.
// A nil reg disables /metrics.
func newRouter(cfg *config.Config, log logger.Logger, reg *prometheus.Registry) (http.Handler, error) {
	var rec metrics.Recorder = metrics.NoopRecorder{}
	if reg != nil {
		prom, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		rec = prom
	}

	verifier := verification.NewVerifier(
		verification.WithLogger(log.Named("verifier")),
		verification.WithMetrics(rec),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	for _, route := range cfg.Routes {
		req, err := route.Requirements()
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", route.Path, err)
		}

		body := route.Body
		paid := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(body))
		})

		r.With(middleware.Handler(middleware.Config{
			Requirements: middleware.Static(*req),
			Verifier:     verifier,
			ExemptPaths:  cfg.ExemptPaths,
			Decimals:     cfg.Decimals,
			Logger:       log,
			Metrics:      rec,
		})).Handle(route.Path, paid)
	}

	return r, nil
}
