package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/api"
	"github.com/strollr-labs/strollr/internal/discovery"
	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/infra/observability"
	"github.com/strollr-labs/strollr/internal/infra/places"
	"github.com/strollr-labs/strollr/internal/infra/sqlite"
	"github.com/strollr-labs/strollr/internal/tracking"
)

// lifecycleBuffer bounds the queue of host transitions between the API and
// the lifecycle monitor.
const lifecycleBuffer = 16

// staleSessionMaxAge is how long a session may track before the maintenance
// sweep force-stops it. An abandoned walk still gets finalized and
// consolidated; it just stops accumulating.
const staleSessionMaxAge = 24 * time.Hour

// Daemon owns the full backend assembly.
type Daemon struct {
	cfg     Config
	db      *sqlite.DB
	tracker *tracking.Manager
	pings   *discovery.PingManager
	monitor *tracking.LifecycleMonitor
	cron    *cron.Cron
	httpSrv *http.Server
	log     zerolog.Logger
}

// New wires every component from configuration. Nothing starts running until
// Run is called.
func New(cfg Config) (*Daemon, error) {
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component("daemon")

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." && cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	searcher := places.NewClient(places.Config{
		BaseURL: cfg.Places.BaseURL,
		APIKey:  cfg.Places.APIKey,
	})

	pings := discovery.NewPingManager(searcher, db, nil)
	engine := discovery.NewRouteEngine(searcher)
	consolidator := discovery.NewConsolidator(nil)
	coordinator := discovery.NewCoordinator(engine, pings, consolidator, db)
	coordinator.SetOnConsolidated(func(sessionID string, discoveries []domain.ConsolidatedDiscovery) {
		log.Info().Str("session", sessionID).Int("discoveries", len(discoveries)).
			Msg("walk discoveries ready")
	})

	lifecycleCh := make(chan tracking.LifecycleEvent, lifecycleBuffer)
	monitor := tracking.NewLifecycleMonitor(samplingLogger{log: logging.Component("sampling")}, nil)
	if err := monitor.Subscribe(lifecycleCh); err != nil {
		db.Close()
		return nil, err
	}

	tracker := tracking.NewManager(tracking.ManagerConfig{
		Clock:   domain.ClockFunc(time.Now),
		Store:   db,
		Monitor: monitor,
		OnFinalized: func(fs tracking.FinalizedSession) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := coordinator.Finalize(ctx, fs.Summary, fs.Route); err != nil {
				log.Error().Err(err).Str("session", fs.Summary.SessionID).
					Msg("end-of-walk finalization failed")
			}
		},
	})

	server := api.NewServer(api.ServerConfig{
		Tracker:     tracker,
		Pings:       pings,
		Coordinator: coordinator,
		Discoveries: db,
		Sessions:    db,
		Lifecycle:   lifecycleCh,
	})
	if cfg.API.MetricsEnabled {
		server.EnableMetrics()
	}

	d := &Daemon{
		cfg:     cfg,
		db:      db,
		tracker: tracker,
		pings:   pings,
		monitor: monitor,
		cron:    cron.New(),
		httpSrv: &http.Server{
			Addr:              cfg.API.Addr(),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}

	if _, err := d.cron.AddFunc(cfg.Discovery.LedgerSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := d.sweepLedgers(ctx); err != nil {
			log.Warn().Err(err).Msg("ledger sweep failed")
		}
		d.sweepStaleSessions(ctx)
		d.sweepStagedPings()
	}); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.cron.Start()
	d.log.Info().Str("addr", d.cfg.API.Addr()).Msg("daemon listening")

	errCh := make(chan error, 1)
	go func() {
		if err := d.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		d.shutdown()
		return err
	}

	d.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
		d.log.Warn().Err(err).Msg("http shutdown")
	}
	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	cronCtx := d.cron.Stop()
	<-cronCtx.Done()
	d.tracker.Shutdown()
	d.monitor.Close()
	if err := d.db.Close(); err != nil {
		d.log.Warn().Err(err).Msg("close database")
	}
}

// sweepLedgers normalizes every stored credit ledger so period rollovers and
// corruption are healed even for users who never ping.
func (d *Daemon) sweepLedgers(ctx context.Context) error {
	ids, err := d.db.ListLedgerUserIDs(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	healed := 0
	for _, id := range ids {
		ledger, err := d.db.GetLedger(ctx, id)
		if err != nil {
			continue
		}
		normalized, changed := ledger.Normalize(now)
		if !changed {
			continue
		}
		if err := d.db.PutLedger(ctx, normalized); err != nil {
			d.log.Warn().Err(err).Str("user", id).Msg("ledger sweep write")
			continue
		}
		observability.LedgerResets.Inc()
		healed++
	}
	if healed > 0 {
		d.log.Info().Int("healed", healed).Int("total", len(ids)).Msg("ledger sweep complete")
	}
	return nil
}

// sweepStaleSessions force-stops walks that have been tracking for longer
// than staleSessionMaxAge. Stop runs the normal finalization flow.
func (d *Daemon) sweepStaleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-staleSessionMaxAge)
	for _, userID := range d.tracker.StaleSessions(cutoff) {
		if _, err := d.tracker.Stop(ctx, userID); err != nil {
			d.log.Warn().Err(err).Str("user", userID).Msg("stale session stop")
			continue
		}
		d.log.Info().Str("user", userID).Msg("stale session force-stopped")
	}
}

// sweepStagedPings discards staged ping results whose session is gone.
// Runs after the stale-session sweep so just-finalized sessions have already
// had their staged results consumed.
func (d *Daemon) sweepStagedPings() {
	if removed := d.pings.SweepStaged(d.tracker.ActiveSessionIDs()); removed > 0 {
		d.log.Info().Int("sessions", removed).Msg("orphaned ping results discarded")
	}
}

// samplingLogger stands in for the mobile platform's location service knob on
// the backend: frequency changes are logged for diagnosis.
type samplingLogger struct {
	log zerolog.Logger
}

func (s samplingLogger) SetHighFrequency(enabled bool) {
	s.log.Debug().Bool("high_frequency", enabled).Msg("sampling frequency changed")
}
