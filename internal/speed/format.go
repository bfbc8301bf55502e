package speed

import (
	"fmt"
	"strconv"
)

const (
	mbSwitchBytes = 1_024_000
	bytesPerMiB   = 1_048_576
	bytesPerGiB   = 1_073_741_824
)

// FormatSpeed converts a per-tick byte delta into the displayed value and
// unit. The precision rule is asymmetric on purpose and is pinned by tests:
// MB/s values render with one decimal below 10 MB/s and none above, KB/s
// values render as floor-divided integers.
func FormatSpeed(totalBytes int64) (value, unit string) {
	if totalBytes >= mbSwitchBytes {
		mb := float64(totalBytes) / float64(bytesPerMiB)
		if mb >= 10 {
			return fmt.Sprintf("%.0f", mb), "MB/s"
		}
		return fmt.Sprintf("%.1f", mb), "MB/s"
	}
	return strconv.FormatInt(totalBytes/1024, 10), "KB/s"
}

// FormatSimple renders a per-direction rate for the up/down breakdown.
func FormatSimple(b int64) string {
	if b >= mbSwitchBytes {
		return fmt.Sprintf("%.1f MB/s", float64(b)/float64(bytesPerMiB))
	}
	return fmt.Sprintf("%d KB/s", b/1024)
}

// FormatUsage renders an accumulated byte total. forceMB pins the unit to MB
// regardless of magnitude (the unit_in_mb preference).
func FormatUsage(bytes int64, forceMB bool) string {
	if !forceMB && bytes >= bytesPerGiB {
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(bytesPerGiB))
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/float64(bytesPerMiB))
}
