package usage

import (
	"context"
	"errors"
	"time"

	"netspeed-daemon/internal/netstat"
)

// ErrUnavailable signals that the privileged historical usage facility is
// not present (accounting daemon missing or its database unreadable). It is
// deliberately distinct from a zero-byte result so callers can fall back to
// the manual per-day counters.
var ErrUnavailable = errors.New("usage: historical source unavailable")

// SanityCeilingBytes rejects any single bucket report above 100 TiB as a
// platform glitch.
const SanityCeilingBytes = int64(100) << 40

// HistoryProvider answers historical byte totals per transport over a time
// range.
type HistoryProvider interface {
	// RangeSum sums historical usage for one transport over [start, end)
	// under the strict-inclusion bucket policy: a bucket counts iff its
	// start lies inside the range, so a bucket spanning the lower boundary
	// is dropped rather than interpolated.
	RangeSum(ctx context.Context, transport netstat.Transport, start, end time.Time) (int64, error)
}
