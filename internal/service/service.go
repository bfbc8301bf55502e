package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"netspeed-daemon/internal/alert"
	"netspeed-daemon/internal/config"
	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/icon"
	"netspeed-daemon/internal/netstat"
	"netspeed-daemon/internal/power"
	"netspeed-daemon/internal/publish"
	"netspeed-daemon/internal/scheduler"
	"netspeed-daemon/internal/speed"
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

// Service orchestrates sampling, rendering, publishing, and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	sampler    *speed.Sampler
	store      *store.Store
	aggregator *usage.Aggregator
	machine    *alert.Machine
	renderer   *icon.Renderer
	publisher  *publish.Publisher
	events     power.EventSource
	control    *control.Server
	logger     zerolog.Logger

	lockPath   string
	alertEvery int

	tickCount int
	fallback  bool

	// pending fallback deltas, flushed on the alert tick
	pendingDay    string
	pendingMobile int64
	pendingWifi   int64

	// usageSnap caches the last answer from the historical source so the
	// tick loop never waits on it; refreshed by the worker goroutine.
	usageMu   sync.Mutex
	usageSnap usageSnapshot
	inflight  bool

	wg sync.WaitGroup
}

type usageSnapshot struct {
	mobile int64
	wifi   int64
	src    usage.Source
	err    error
	primed bool
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, sampler *speed.Sampler, st *store.Store, agg *usage.Aggregator, machine *alert.Machine, renderer *icon.Renderer, publisher *publish.Publisher, events power.EventSource, ctrl *control.Server, logger zerolog.Logger) *Service {
	alertEvery := cfg.Sampler.AlertEvery
	if alertEvery <= 0 {
		alertEvery = 5
	}
	return &Service{
		scheduler:  sched,
		sampler:    sampler,
		store:      st,
		aggregator: agg,
		machine:    machine,
		renderer:   renderer,
		publisher:  publisher,
		events:     events,
		control:    ctrl,
		logger:     logger.With().Str("component", "service").Logger(),
		lockPath:   cfg.State.LockPath,
		alertEvery: alertEvery,
	}
}

// Run acquires the single-instance lock and drives the sampling loop until
// ctx is cancelled. A second invocation while an instance is alive logs and
// returns nil, so speculative starts stay harmless.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	lock := flock.New(s.lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !held {
		s.logger.Info().Str("lock", s.lockPath).Msg("another instance holds the lock; exiting")
		return nil
	}
	defer lock.Unlock()

	s.fallback = !s.aggregator.PrivilegedAvailable(ctx)
	if s.fallback {
		s.logger.Warn().Msg("privileged usage source unavailable; serving usage from manual counters")
	}

	// The control socket is how settings commands reach the store while
	// this process holds its exclusive lock.
	if s.control != nil {
		if err := s.control.Start(); err != nil {
			return err
		}
		defer s.control.Close()
	}

	err = s.scheduler.Run(ctx, s.ProcessTick)
	s.teardown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ProcessTick 执行单个采样周期。
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	sample, err := s.sampler.Tick(ctx)
	if err != nil {
		return fmt.Errorf("read counters: %w", err)
	}

	s.machine.AddMobile(sample.MobileDelta, at)
	s.accumulateFallback(sample, at)

	s.tickCount++
	alertTick := s.tickCount%s.alertEvery == 0
	if alertTick {
		s.flushFallback()
	}
	if alertTick || !s.snapshot().primed {
		s.dispatchWorker(ctx, at, alertTick)
	}

	content := s.compose(sample)
	if err := s.publisher.Publish(content.icon, content.status); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

type composed struct {
	icon   image.Image
	status publish.Status
}

func (s *Service) compose(sample speed.Sample) composed {
	showSpeed := s.store.GetBool(store.KeyShowSpeed, true)
	showUpDown := s.store.GetBool(store.KeyShowUpDown, false)
	showSignal := s.store.GetBool(store.KeyShowWifiSignal, false)
	forceMB := s.store.GetBool(store.KeyUnitInMB, false)

	value, unit := speed.FormatSpeed(sample.Total())
	text := value + " " + unit

	var tooltip []string
	if showUpDown {
		tooltip = append(tooltip,
			"↓ "+speed.FormatSimple(sample.RxDelta),
			"↑ "+speed.FormatSimple(sample.TxDelta))
	}
	if showSignal {
		tooltip = append(tooltip, fmt.Sprintf("WiFi %d%%", netstat.SignalPercent()))
	}

	snap := s.snapshot()
	switch {
	case !snap.primed:
		// the first worker refresh has not answered yet
	case snap.err != nil:
		tooltip = append(tooltip, "usage history unavailable: install and enable vnstat")
	default:
		tooltip = append(tooltip, fmt.Sprintf("today: mobile %s · wifi %s",
			speed.FormatUsage(snap.mobile, forceMB), speed.FormatUsage(snap.wifi, forceMB)))
		if snap.src == usage.SourceFallback {
			tooltip = append(tooltip, "counting locally; install and enable vnstat for full accounting")
		}
	}

	state := s.store.AlertState()
	class := "normal"
	switch {
	case state.Fired100:
		class = "over"
	case state.Fired80:
		class = "warn"
	}

	glyph := s.renderer.Render(value, unit)
	if !showSpeed {
		// With the speed display off the glyph falls back to today's
		// total so the bar slot is never blank.
		total := snap.mobile + snap.wifi
		parts := strings.SplitN(speed.FormatUsage(total, forceMB), " ", 2)
		if len(parts) == 2 {
			glyph = s.renderer.Render(parts[0], parts[1])
		}
		text = speed.FormatUsage(total, forceMB)
	}

	return composed{
		icon: glyph,
		status: publish.Status{
			Text:    text,
			Tooltip: strings.Join(tooltip, "\n"),
			Class:   class,
		},
	}
}

// accumulateFallback banks per-tick deltas for the manual counters while the
// privileged source is absent.
func (s *Service) accumulateFallback(sample speed.Sample, at time.Time) {
	if !s.fallback {
		return
	}
	day := store.DayKey(at)
	if s.pendingDay != "" && s.pendingDay != day {
		// Flush across midnight so no delta lands in the wrong day.
		s.flushFallback()
	}
	s.pendingDay = day
	s.pendingMobile += sample.MobileDelta
	s.pendingWifi += sample.WifiDelta
}

func (s *Service) flushFallback() {
	if s.pendingDay == "" || (s.pendingMobile == 0 && s.pendingWifi == 0) {
		return
	}
	if err := s.store.AddManualUsage(s.pendingDay, s.pendingMobile, s.pendingWifi); err != nil {
		s.logger.Error().Err(err).Str("day", s.pendingDay).Msg("persist manual counters")
		return
	}
	s.pendingMobile = 0
	s.pendingWifi = 0
}

// dispatchWorker refreshes the usage snapshot, and on alert ticks also runs
// a quota evaluation, on a worker goroutine. At most one worker runs at a
// time so a stalled historical query cannot pile goroutines up behind it,
// and the tick loop itself never waits on the query.
func (s *Service) dispatchWorker(ctx context.Context, at time.Time, evaluate bool) {
	s.usageMu.Lock()
	if s.inflight {
		s.usageMu.Unlock()
		return
	}
	s.inflight = true
	s.usageMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		mobile, wifi, src, err := s.aggregator.TodayUsage(ctx, at)
		s.usageMu.Lock()
		s.usageSnap = usageSnapshot{mobile: mobile, wifi: wifi, src: src, err: err, primed: true}
		s.inflight = false
		s.usageMu.Unlock()

		if evaluate {
			if err := s.machine.Evaluate(ctx, at); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("quota evaluation failed")
			}
		}
	}()
}

func (s *Service) snapshot() usageSnapshot {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	return s.usageSnap
}

func (s *Service) teardown() {
	s.flushFallback()
	s.wg.Wait()
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close power event source")
		}
	}
	s.publisher.Clear()
}
