package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/foxzi/listctl/api"
	"github.com/foxzi/listctl/internal/config"
	"github.com/foxzi/listctl/internal/exporter"
	"github.com/foxzi/listctl/internal/fakeapi"
	"github.com/foxzi/listctl/internal/journal"
	"github.com/foxzi/listctl/internal/metrics"
	"github.com/foxzi/listctl/segments"
)

// Version is the listctl version, set at build time
var Version = "dev"

// App wires the configured components together
type App struct {
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	journal  *journal.BoltStorage
	segments *segments.Client
	tempDirs []string
}

// New creates a new application. Log records are written to logOut.
func New(cfg *config.Config, logOut io.Writer) *App {
	return &App{
		config:  cfg,
		logger:  NewLogger(cfg.Logging, logOut),
		metrics: metrics.New(),
	}
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Metrics returns the application metrics
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Journal opens the call journal
func (a *App) Journal() (*journal.BoltStorage, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	storage, err := journal.NewBoltStorage(a.config.Journal.Path)
	if err != nil {
		return nil, err
	}
	a.journal = storage
	return storage, nil
}

// Segments returns the segment client, creating the API client on first use
func (a *App) Segments() (*segments.Client, error) {
	if a.segments != nil {
		return a.segments, nil
	}

	if err := a.config.ValidateClient(); err != nil {
		return nil, err
	}

	opts := []api.Option{
		api.WithLogger(a.logger.With("component", "api_client")),
		api.WithMetrics(a.metrics.Registry()),
	}
	if a.config.API.Timeout > 0 {
		opts = append(opts, api.WithHTTPClient(newHTTPClient(a.config.API.Timeout)))
	}
	if a.config.API.UserAgent != "" {
		opts = append(opts, api.WithUserAgent(a.config.API.UserAgent))
	} else {
		opts = append(opts, api.WithUserAgent("listctl/"+Version))
	}

	if a.config.Journal.Enabled {
		storage, err := a.Journal()
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		opts = append(opts, api.WithRecorder(storage))
	}

	client, err := api.NewClient(a.config.API.BaseURL, a.config.API.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	a.segments = segments.New(client)
	return a.segments, nil
}

// startCleaner starts journal retention when the journal is enabled
func (a *App) startCleaner(ctx context.Context) (*journal.Cleaner, error) {
	if !a.config.Journal.Enabled {
		return nil, nil
	}
	storage, err := a.Journal()
	if err != nil {
		return nil, err
	}
	cleaner := journal.NewCleaner(storage, journal.CleanerConfig{
		MaxAge:   a.config.Journal.MaxAge,
		MaxCount: a.config.Journal.MaxCount,
		Interval: a.config.Journal.CleanupInterval,
	}, a.logger.With("component", "journal_cleaner"))
	cleaner.Start(ctx)
	return cleaner, nil
}

// RunExporter serves segment gauges until a shutdown signal is received
func (a *App) RunExporter(ctx context.Context) error {
	seg, err := a.Segments()
	if err != nil {
		return err
	}
	if len(a.config.Exporter.Lists) == 0 {
		return fmt.Errorf("exporter.lists is empty")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := metrics.NewServer(a.metrics, a.config.Metrics.ListenAddr, a.config.Metrics.Path,
		a.config.Metrics.AllowedIPs, a.logger.With("component", "metrics"))
	if err != nil {
		return err
	}

	exp := exporter.New(seg, a.metrics, exporter.Config{
		UserKey:  a.config.API.UserKey,
		ClientID: a.config.API.ClientID,
		Lists:    a.config.Exporter.Lists,
		Details:  a.config.Exporter.Details,
		Interval: a.config.Exporter.Interval,
	}, a.logger.With("component", "exporter"))

	cleaner, err := a.startCleaner(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	exp.Start(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
	}

	exp.Stop()
	if cleaner != nil {
		cleaner.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("metrics server shutdown error", "error", err)
	}

	return runErr
}

// RunFake serves the fake API until a shutdown signal is received
func (a *App) RunFake(ctx context.Context) error {
	path := a.config.Fake.StoragePath
	if path == "" {
		dir, err := os.MkdirTemp("", "listctl-fake-")
		if err != nil {
			return fmt.Errorf("failed to create temporary storage: %w", err)
		}
		a.tempDirs = append(a.tempDirs, dir)
		path = filepath.Join(dir, "fake.db")
	}

	store, err := fakeapi.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fakeapi.Seed(store, a.config.Fake.Lists); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fake, err := fakeapi.NewServer(store, &a.config.Fake, a.metrics, a.logger.With("component", "fake_api"))
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		if err := fake.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("fake api server: %w", err)
		}
	}()

	var metricsSrv *metrics.Server
	if a.config.Metrics.Enabled {
		metricsSrv, err = metrics.NewServer(a.metrics, a.config.Metrics.ListenAddr, a.config.Metrics.Path,
			a.config.Metrics.AllowedIPs, a.logger.With("component", "metrics"))
		if err != nil {
			return err
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := fake.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("fake api shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	return runErr
}

// Close releases the resources held by the application
func (a *App) Close() error {
	var firstErr error
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = err
		}
		a.journal = nil
	}
	for _, dir := range a.tempDirs {
		os.RemoveAll(dir)
	}
	a.tempDirs = nil
	return firstErr
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}
