// Package app wires the agent's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"raccolta/internal/config"
	"raccolta/internal/core/apperror"
	"raccolta/internal/core/numerator"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/documents"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
	"raccolta/internal/domain/syncer"
	v1 "raccolta/internal/infrastructure/http/v1"
	"raccolta/internal/infrastructure/metrics"
	"raccolta/internal/infrastructure/network"
	"raccolta/internal/infrastructure/remote"
	"raccolta/internal/infrastructure/storage"
	"raccolta/pkg/logger"
)

// Version is reported by /health/info.
var Version = "dev"

// App holds the wired agent.
type App struct {
	cfg *config.Config
	log *logger.Logger

	Store    domain.Store
	Metrics  *metrics.Metrics
	Counters *counter.Manager
	Creator  *documents.Creator
	Sync     *syncer.Manager
	Detector *network.Detector

	// Remote is nil when no endpoint is configured.
	Remote *remote.Client
}

// New opens the store and builds every component. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	docCfg, err := documentsConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Config{
		Backend:    cfg.Storage.Backend,
		SQLitePath: cfg.Storage.SQLitePath,
		BadgerPath: cfg.Storage.BadgerPath,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{cfg: cfg, log: log, Store: store, Metrics: metrics.New()}
	a.Metrics.SetStorageBackend(store.Backend())

	var (
		syncRemote syncer.Remote  = disconnected{}
		pinger     network.Pinger = disconnected{}
	)
	counterOpts := []counter.Option{counter.WithLogger(log), counter.WithMetrics(a.Metrics)}
	if cfg.Remote.BaseURL != "" {
		a.Remote = remote.New(remote.Config{
			BaseURL:           cfg.Remote.BaseURL,
			Timeout:           cfg.Remote.Timeout,
			Compress:          cfg.Remote.Compress,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
			Burst:             cfg.Remote.Burst,
		}, nil, log)
		syncRemote, pinger = a.Remote, a.Remote
		counterOpts = append(counterOpts, counter.WithRemote(a.Remote))
	} else {
		log.Warn("remote.base_url not set, running offline only")
	}

	a.Counters = counter.NewManager(store, counter.Config{AgentID: cfg.Agent.ID, AgentCode: cfg.Agent.Code}, counterOpts...)
	if err := a.Counters.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load counters: %w", err)
	}
	docCfg.AgentCode = a.Counters.AgentCode()

	orders := sale_order.NewRepository(store)
	pickings := stock_picking.NewRepository(store)
	ddts := delivery_note.NewRepository(store)
	a.Creator = documents.NewCreator(a.Counters, orders, pickings, ddts, docCfg)

	a.Sync = syncer.NewManager(store, orders, pickings, ddts, syncRemote,
		syncer.Config{MaxAttempts: cfg.Sync.MaxAttempts, Interval: cfg.Sync.Interval},
		syncer.WithCounters(a.Counters),
		syncer.WithCleaner(a.Creator),
		syncer.WithMetrics(a.Metrics),
		syncer.WithLogger(log),
	)

	a.Detector = network.NewDetector(pinger, network.Config{
		CheckInterval:    cfg.Network.CheckInterval,
		CheckTimeout:     cfg.Network.CheckTimeout,
		FailureThreshold: cfg.Network.FailureThreshold,
	}, log)
	a.Detector.OnChange(a.Metrics.SetOnline)
	a.Detector.OnChange(a.Sync.HandleNetworkChange)

	log.Infow("agent ready",
		"agent_id", cfg.Agent.ID,
		"agent_code", a.Counters.AgentCode(),
		"backend", store.Backend(),
		"remote", cfg.Remote.BaseURL,
	)
	return a, nil
}

func documentsConfig(cfg *config.Config) (documents.Config, error) {
	d := documents.DefaultConfig(cfg.Agent.ID)
	d.AgentName = cfg.Agent.Name
	d.SessionID = cfg.Agent.SessionID
	if cfg.Documents.TaxRate != "" {
		rate, err := types.NewMoneyFromString(cfg.Documents.TaxRate)
		if err != nil {
			return d, fmt.Errorf("documents.tax_rate: %w", err)
		}
		d.TaxRate = rate
	}
	d.ValidityDays = cfg.Documents.ValidityDays
	if cfg.Documents.Location != "" {
		d.Location = cfg.Documents.Location
	}
	if cfg.Documents.LocationDest != "" {
		d.LocationDest = cfg.Documents.LocationDest
	}
	if cfg.Documents.CompanyPartnerID > 0 {
		d.CompanyPartnerID = cfg.Documents.CompanyPartnerID
	}
	d.Numbering = numerator.ParseStrategy(cfg.Documents.Numbering)
	dn := cfg.Documents.DeliveryNote
	d.Transport = d.Transport.Merge(delivery_note.Transport{
		Reason:     dn.Reason,
		Appearance: dn.Appearance,
		Condition:  dn.Condition,
		Method:     dn.Method,
		Packages:   dn.Packages,
	})
	return d, nil
}

// Router builds the local API.
func (a *App) Router() *gin.Engine {
	return v1.NewRouter(v1.RouterConfig{
		Creator:        a.Creator,
		Sync:           a.Sync,
		Counters:       a.Counters,
		Store:          a.Store,
		Logger:         a.log,
		Metrics:        a.Metrics,
		MetricsHandler: a.Metrics.Handler(),
		Numbering:      numerator.ParseStrategy(a.cfg.Documents.Numbering),
		AgentID:        a.cfg.Agent.ID,
		AgentCode:      a.Counters.AgentCode(),
		Version:        Version,
	})
}

// Run serves the local API, probes connectivity and, when configured,
// syncs automatically until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if a.cfg.Sync.AutoStart {
		a.Sync.Start(ctx)
		defer a.Sync.Stop()
	}
	if a.cfg.Sync.CleanupDays > 0 {
		if n, err := a.Sync.CleanupSyncData(ctx, a.cfg.Sync.CleanupDays); err != nil {
			a.log.Warnw("startup cleanup failed", "error", err)
		} else if n > 0 {
			a.log.Infow("old synced documents removed", "count", n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Detector.Run(gctx)
	})
	g.Go(func() error {
		a.log.Infow("local api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("shutting down local api")
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// disconnected stands in for the remote endpoint when none is configured.
type disconnected struct{}

func (disconnected) Ping(context.Context) error { return apperror.NewOffline() }

func (disconnected) SyncOrder(context.Context, syncer.OrderRequest) (syncer.DocumentResponse, error) {
	return syncer.DocumentResponse{}, apperror.NewOffline()
}

func (disconnected) SyncPicking(context.Context, syncer.PickingRequest) (syncer.DocumentResponse, error) {
	return syncer.DocumentResponse{}, apperror.NewOffline()
}

func (disconnected) SyncDeliveryNote(context.Context, syncer.DeliveryNoteRequest) (syncer.DocumentResponse, error) {
	return syncer.DocumentResponse{}, apperror.NewOffline()
}
