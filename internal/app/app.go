package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/alert"
	"netspeed-daemon/internal/config"
	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/icon"
	"netspeed-daemon/internal/netstat"
	"netspeed-daemon/internal/power"
	"netspeed-daemon/internal/publish"
	"netspeed-daemon/internal/scheduler"
	"netspeed-daemon/internal/service"
	"netspeed-daemon/internal/speed"
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore opens the state database and seeds unset preferences.
func (a *App) openStore() (*store.Store, func(), error) {
	st, err := store.Open(a.Config.State.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Seed(a.Config.Defaults); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

func (a *App) newProvider() usage.HistoryProvider {
	return usage.NewVnstat(usage.VnstatOptions{
		BinPath: a.Config.Usage.VnstatPath,
		Timeout: a.Config.Usage.RequestTimeout,
	}, a.Logger)
}

func (a *App) newAggregator(st *store.Store) *usage.Aggregator {
	return usage.NewAggregator(a.newProvider(), st, a.Config.Usage.LookbackDays, a.Logger)
}

func (a *App) newNotifier() alert.Notifier {
	if a.Config.Alerting.DesktopEnabled {
		return alert.NewDesktopNotifier(a.Config.App.Name, a.Logger)
	}
	return nil
}

// Run executes the long-running sampling daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	agg := a.newAggregator(st)
	machine := alert.NewMachine(st, agg, a.newNotifier(), a.Config.Retention.Days, a.Logger)

	renderer, err := icon.NewRenderer(a.Config.IconSize(), a.Config.Icon.CacheCap, a.Logger)
	if err != nil {
		return err
	}

	publisher, err := publish.NewPublisher(a.Config.Publish.OutputDir, a.Config.Publish.IconFile, a.Config.Publish.StatusFile, a.Logger)
	if err != nil {
		return err
	}

	var events power.EventSource
	source, err := power.NewLogindSource(a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("power events unavailable; sampling at the live cadence only")
	} else {
		events = source
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Sampler.Interval,
		SlowInterval: a.Config.Sampler.SlowInterval,
		StartupDelay: a.Config.Sampler.StartupDelay,
	}, events, a.Logger)

	sampler := speed.NewSampler(netstat.NewReader(a.Logger), a.Logger)

	var ctrl *control.Server
	if a.Config.Control.SocketPath != "" {
		ctrl = control.NewServer(a.Config.Control.SocketPath, st, agg, a.Logger)
	}

	svc := service.New(a.Config, sched, sampler, st, agg, machine, renderer, publisher, events, ctrl, a.Logger)

	a.Logger.Info().Msg("starting sampling daemon")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("sampling daemon stopped")
	return nil
}

// UsageOptions configure the usage table.
type UsageOptions struct {
	Days int
}

// ExportOptions hold parameters for exporting daily usage history.
type ExportOptions struct {
	From    *time.Time
	To      *time.Time
	PNGPath string
	CSVPath string
}

// BackfillOptions configure rebuilding the manual counters from the
// privileged source.
type BackfillOptions struct {
	Days   int
	DryRun bool
}

// AlertsOptions configure the alerts listing.
type AlertsOptions struct {
	Limit int
}
