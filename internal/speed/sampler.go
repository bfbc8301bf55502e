package speed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/netstat"
)

// CounterSource provides cumulative counter snapshots.
type CounterSource interface {
	Read(ctx context.Context) (netstat.Snapshot, error)
}

// Sample is one tick's worth of per-transport byte deltas.
type Sample struct {
	RxDelta     int64
	TxDelta     int64
	MobileDelta int64
	WifiDelta   int64
	Taken       time.Time
}

// Total is the device-wide delta driving the speed readout.
func (s Sample) Total() int64 {
	return s.RxDelta + s.TxDelta
}

// Sampler holds the previous snapshot and turns successive snapshots into
// per-tick deltas. Carrying the newest snapshot forward after every read is
// what re-syncs the baseline when a counter rolls back.
type Sampler struct {
	source CounterSource
	prev   netstat.Snapshot
	primed bool
	logger zerolog.Logger
}

// NewSampler constructs a sampler over the given counter source.
func NewSampler(source CounterSource, logger zerolog.Logger) *Sampler {
	return &Sampler{
		source: source,
		logger: logger.With().Str("component", "sampler").Logger(),
	}
}

// Tick reads a fresh snapshot and returns the deltas since the previous one.
// The first tick primes the baseline and reports zero deltas.
func (s *Sampler) Tick(ctx context.Context) (Sample, error) {
	cur, err := s.source.Read(ctx)
	if err != nil {
		return Sample{}, err
	}

	sample := Sample{Taken: cur.Taken}
	if s.primed {
		sample.RxDelta = netstat.Delta(s.prev.DeviceRx, cur.DeviceRx)
		sample.TxDelta = netstat.Delta(s.prev.DeviceTx, cur.DeviceTx)
		sample.MobileDelta = netstat.Delta(s.prev.MobileRx, cur.MobileRx) +
			netstat.Delta(s.prev.MobileTx, cur.MobileTx)
		sample.WifiDelta = netstat.Delta(s.prev.WifiRx, cur.WifiRx) +
			netstat.Delta(s.prev.WifiTx, cur.WifiTx)
	}

	s.prev = cur
	s.primed = true
	return sample, nil
}
