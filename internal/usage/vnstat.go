package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/netstat"
)

// hour buckets fetched per query; covers the 30-day lookback plus headroom.
const vnstatHourCount = 31 * 24

// reportTTL bounds how often the external binary is invoked when a burst of
// range queries arrives (the 30-day scan issues 60 of them).
const reportTTL = 30 * time.Second

// VnstatOptions parameterise the vnstat-backed history provider.
type VnstatOptions struct {
	BinPath string
	Timeout time.Duration
}

// Vnstat reads historical hour buckets from the vnstat accounting daemon.
// vnstat is the privileged facility here: it is only useful when installed
// and collecting, which the user may never have set up.
type Vnstat struct {
	opts   VnstatOptions
	logger zerolog.Logger

	mu        sync.Mutex
	cached    *vnstatReport
	lastErr   error
	fetchedAt time.Time
}

// NewVnstat constructs a vnstat history provider.
func NewVnstat(opts VnstatOptions, logger zerolog.Logger) *Vnstat {
	if opts.BinPath == "" {
		opts.BinPath = "vnstat"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Vnstat{
		opts:   opts,
		logger: logger.With().Str("component", "vnstat").Logger(),
	}
}

// RangeSum sums hour buckets for one transport over [start, end) with
// strict inclusion filtering, dropping negative and glitched buckets.
func (v *Vnstat) RangeSum(ctx context.Context, transport netstat.Transport, start, end time.Time) (int64, error) {
	report, err := v.report(ctx)
	if err != nil {
		return 0, err
	}
	return report.sum(transport, start, end), nil
}

func (v *Vnstat) report(ctx context.Context) (*vnstatReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Both outcomes are cached for the TTL: success bounds how often the
	// binary is invoked, failure keeps an absent vnstat from being looked
	// up again on every query.
	if time.Since(v.fetchedAt) < reportTTL {
		if v.cached != nil {
			return v.cached, nil
		}
		if v.lastErr != nil {
			return nil, v.lastErr
		}
	}

	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.opts.BinPath, "--json", "h", fmt.Sprint(vnstatHourCount))
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			// binary not installed
			return nil, v.fail(fmt.Errorf("%w: %s", ErrUnavailable, execErr.Err))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// vnstat exits non-zero when its database is missing or empty
			return nil, v.fail(fmt.Errorf("%w: vnstat exit %d", ErrUnavailable, exitErr.ExitCode()))
		}
		return nil, v.fail(fmt.Errorf("run vnstat: %w", err))
	}

	report, err := parseVnstatReport(out)
	if err != nil {
		// Output the daemon cannot read means the facility cannot serve;
		// callers fall back to the manual counters.
		return nil, v.fail(fmt.Errorf("%w: parse vnstat output: %v", ErrUnavailable, err))
	}

	v.cached = report
	v.lastErr = nil
	v.fetchedAt = time.Now()
	return report, nil
}

func (v *Vnstat) fail(err error) error {
	v.cached = nil
	v.lastErr = err
	v.fetchedAt = time.Now()
	return err
}

type vnstatReport struct {
	Interfaces []vnstatInterface `json:"interfaces"`
}

type vnstatInterface struct {
	Name    string        `json:"name"`
	Traffic vnstatTraffic `json:"traffic"`
}

type vnstatTraffic struct {
	Hour []vnstatBucket `json:"hour"`
}

type vnstatBucket struct {
	Date vnstatDate `json:"date"`
	Time vnstatTime `json:"time"`
	Rx   int64      `json:"rx"`
	Tx   int64      `json:"tx"`
}

type vnstatDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type vnstatTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func parseVnstatReport(data []byte) (*vnstatReport, error) {
	var report vnstatReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (b vnstatBucket) start() time.Time {
	return time.Date(b.Date.Year, time.Month(b.Date.Month), b.Date.Day, b.Time.Hour, b.Time.Minute, 0, 0, time.Local)
}

// sum applies the strict-inclusion policy over all interfaces of the
// transport class.
func (r *vnstatReport) sum(transport netstat.Transport, start, end time.Time) int64 {
	var total int64
	for _, iface := range r.Interfaces {
		class, ok := netstat.InterfaceTransport(iface.Name)
		if !ok || class != transport {
			continue
		}
		for _, bucket := range iface.Traffic.Hour {
			bucketStart := bucket.start()
			if bucketStart.Before(start) || !bucketStart.Before(end) {
				continue
			}
			bytes := bucket.Rx + bucket.Tx
			if bytes < 0 || bytes > SanityCeilingBytes {
				continue
			}
			total += bytes
		}
	}
	return total
}
