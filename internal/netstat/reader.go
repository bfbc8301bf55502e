package netstat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gnet "github.com/shirou/gopsutil/v4/net"
)

// Unavailable marks a counter whose interface class has no member (for
// example no cellular modem present). Deltas against it are always zero.
const Unavailable int64 = -1

// Snapshot holds the cumulative byte counters read on one tick. Values are
// monotonically non-decreasing unless the underlying counter has reset; the
// delta rule absorbs that.
type Snapshot struct {
	DeviceRx int64
	DeviceTx int64
	MobileRx int64
	MobileTx int64
	WifiRx   int64
	WifiTx   int64
	Taken    time.Time
}

// Reader sums per-NIC cumulative counters into transport classes. The
// device-wide sums include tunnel interfaces layered over a physical radio,
// so quota accounting uses the transport-specific counters instead.
type Reader struct {
	logger zerolog.Logger
}

// NewReader constructs a counter reader.
func NewReader(logger zerolog.Logger) *Reader {
	return &Reader{logger: logger.With().Str("component", "netstat").Logger()}
}

// Read takes a fresh snapshot of the cumulative byte counters.
func (r *Reader) Read(ctx context.Context) (Snapshot, error) {
	stats, err := gnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read interface counters: %w", err)
	}

	snap := Snapshot{
		MobileRx: Unavailable,
		MobileTx: Unavailable,
		WifiRx:   Unavailable,
		WifiTx:   Unavailable,
		Taken:    time.Now(),
	}

	for _, st := range stats {
		class := classify(st.Name)
		if class == classLoopback {
			continue
		}

		rx := int64(st.BytesRecv)
		tx := int64(st.BytesSent)

		snap.DeviceRx += rx
		snap.DeviceTx += tx

		switch class {
		case classMobile:
			addCounter(&snap.MobileRx, rx)
			addCounter(&snap.MobileTx, tx)
		case classWifi:
			addCounter(&snap.WifiRx, rx)
			addCounter(&snap.WifiTx, tx)
		}
	}

	return snap, nil
}

// Delta computes one side's per-tick delta. Unavailable on either side
// yields zero; a rollback (cur < prev) yields zero for this tick, and the
// caller carries cur forward so the next tick is computed against the new,
// lower baseline.
func Delta(prev, cur int64) int64 {
	if prev == Unavailable || cur == Unavailable {
		return 0
	}
	if cur < prev {
		return 0
	}
	return cur - prev
}

// Transport is a network interface class relevant to usage accounting.
type Transport int

const (
	// TransportMobile covers cellular interfaces (wwan*, wwp*, ppp*).
	TransportMobile Transport = iota
	// TransportWifi covers wireless LAN interfaces (wl*).
	TransportWifi
)

// String implements fmt.Stringer for log fields.
func (t Transport) String() string {
	switch t {
	case TransportMobile:
		return "mobile"
	case TransportWifi:
		return "wifi"
	default:
		return "unknown"
	}
}

// InterfaceTransport maps an interface name to its transport class. The
// second return is false for loopback and for classes outside usage
// accounting (ethernet, tunnels, bridges).
func InterfaceTransport(name string) (Transport, bool) {
	switch classify(name) {
	case classMobile:
		return TransportMobile, true
	case classWifi:
		return TransportWifi, true
	default:
		return 0, false
	}
}

type transportClass int

const (
	classOther transportClass = iota
	classLoopback
	classMobile
	classWifi
)

func classify(name string) transportClass {
	lower := strings.ToLower(name)
	switch {
	case lower == "lo":
		return classLoopback
	case strings.HasPrefix(lower, "wwan"),
		strings.HasPrefix(lower, "wwp"),
		strings.HasPrefix(lower, "ppp"):
		return classMobile
	case strings.HasPrefix(lower, "wl"):
		return classWifi
	default:
		return classOther
	}
}

func addCounter(target *int64, v int64) {
	if *target == Unavailable {
		*target = 0
	}
	*target += v
}
