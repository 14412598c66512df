package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/api"
	"github.com/sells-group/hypolab/internal/experiment"
	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/reconcile"
	"github.com/sells-group/hypolab/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(st).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newAPIServer(st store.Store) *api.Server {
	rs := reconcile.NewService(st, model.DefaultRegistry, cfg.Reconcile.MaxBatchSize)
	es := experiment.NewService(st, experiment.NewEngine(cfg.Experiment.MonteCarloDraws, nil))
	return api.NewServer(rs, es, api.Options{
		CORSOrigins:   cfg.Server.CORSOrigins,
		RateLimitRPM:  cfg.Server.RateLimitRPM,
		Compare:       compareDefaults(),
		VolumeUnit:    cfg.Volume.Unit,
		VolumeMinimum: cfg.Volume.Minimum,
	})
}

// compareDefaults maps the experiment config section onto engine settings.
func compareDefaults() experiment.Config {
	c := experiment.DefaultConfig()
	if cfg.Experiment.PrimaryMetric != "" {
		c.PrimaryMetric = cfg.Experiment.PrimaryMetric
	}
	if cfg.Experiment.Alpha > 0 {
		c.Alpha = cfg.Experiment.Alpha
	}
	c.MDE = cfg.Experiment.MDE
	c.MinExposure = cfg.Experiment.MinExposure
	if cfg.Experiment.Method != "" {
		c.Method = experiment.Method(cfg.Experiment.Method)
	}
	return c
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
