package netstat

import (
	"os"
	"strconv"
	"strings"
)

const wirelessProcPath = "/proc/net/wireless"

// SignalPercent reads the Wi-Fi link quality as a 0-100 percentage.
// Best-effort: any parse or read failure reports 0, never an error, since
// the value only decorates the notification title.
func SignalPercent() int {
	data, err := os.ReadFile(wirelessProcPath)
	if err != nil {
		return 0
	}
	return parseSignal(string(data))
}

func parseSignal(data string) int {
	lines := strings.Split(data, "\n")
	if len(lines) < 3 {
		return 0
	}
	// first two lines are headers
	for _, line := range lines[2:] {
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		quality, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			continue
		}
		// link quality is reported out of 70
		percent := int(quality / 70.0 * 100.0)
		if percent < 0 {
			return 0
		}
		if percent > 100 {
			return 100
		}
		return percent
	}
	return 0
}
