// Package main runs the Homeboard client core as a headless process: it
// signs in, polls the backend, and logs every state change a frontend
// would render. Useful for soak-testing the controller against a live or
// mock backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthlabs/homeboard/internal/api"
	"github.com/hearthlabs/homeboard/internal/app"
	"github.com/hearthlabs/homeboard/internal/config"
	"github.com/hearthlabs/homeboard/internal/session"
	"github.com/hearthlabs/homeboard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	username := flag.String("username", "", "Username to sign in with")
	password := flag.String("password", "", "Password to sign in with")
	dataSource := flag.String("source", "", "Data source: live or mock")
	debugAddr := flag.String("debug-addr", "", "Serve Prometheus metrics on this address")
	flag.Parse()

	// Environment variable overrides
	if v := os.Getenv("HOMEBOARD_CONFIG"); v != "" && *configPath == "" {
		*configPath = v
	}
	if v := os.Getenv("HOMEBOARD_USERNAME"); v != "" && *username == "" {
		*username = v
	}
	if v := os.Getenv("HOMEBOARD_PASSWORD"); v != "" && *password == "" {
		*password = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataSource != "" {
		cfg.DataSource = *dataSource
	}
	if *debugAddr != "" {
		cfg.DebugAddr = *debugAddr
	}

	logg := logger.New("homeboard", cfg.LogLevel)
	logg.WithField("source", cfg.DataSource).Info("starting homeboard")

	store, err := session.Open(cfg.SessionFile, logger.New("session", cfg.LogLevel))
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	sources, err := buildSources(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build data sources: %v", err)
	}

	controller, err := app.New(app.Config{
		Sources:        sources,
		Session:        store,
		Log:            logger.New("controller", cfg.LogLevel),
		DataInterval:   cfg.DataInterval.Std(),
		ChartInterval:  cfg.ChartInterval.Std(),
		AdjustForecast: cfg.AdjustForecast,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsubscribe := controller.Subscribe(func(snap app.Snapshot) {
		entry := logg.WithField("phase", string(snap.Phase)).WithField("page", string(snap.Page))
		if snap.User != nil {
			entry = entry.WithField("user", snap.User.Username)
		}
		switch {
		case snap.Error != "":
			entry.Warn(snap.Error)
		case snap.Success != "":
			entry.Info(snap.Success)
		default:
			entry.Info("state changed")
		}
	})
	defer unsubscribe()

	controller.Start(ctx)

	if *username != "" {
		go func() {
			if err := controller.Login(ctx, *username, *password); err != nil {
				logg.WithError(err).Warn("login failed")
			}
		}()
	} else if !store.Authenticated() {
		logg.Warn("no stored session and no -username given; staying signed out")
	}

	if cfg.DebugAddr != "" {
		go serveDebug(cfg.DebugAddr, logg)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logg.Info("shutting down")
	controller.Close()
}

func buildSources(cfg config.Config, store *session.Store) (app.Sources, error) {
	if cfg.DataSource == "mock" {
		return app.NewMockSources().Sources(), nil
	}
	client, err := api.New(api.Config{
		BaseURL:     cfg.APIBaseURL,
		ForecastURL: cfg.ForecastBaseURL,
		Tokens:      store,
		HTTPClient:  &http.Client{Timeout: cfg.RequestTimeout.Std()},
		Log:         logger.New("api", cfg.LogLevel),
	})
	if err != nil {
		return app.Sources{}, fmt.Errorf("create api client: %w", err)
	}
	return app.LiveSources(client), nil
}

func serveDebug(addr string, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logg.WithField("addr", addr).Info("debug metrics listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logg.WithError(err).Warn("debug server stopped")
	}
}
