package speed

import (
	"testing"
)

func TestFormatSpeedKBBoundary(t *testing.T) {
	// 1,023,999 bytes stays below the MB switch and floor-divides.
	value, unit := FormatSpeed(1_023_999)
	if value != "999" || unit != "KB/s" {
		t.Fatalf("1023999 字节应显示 999 KB/s, 实际 %s %s", value, unit)
	}
}

func TestFormatSpeedMBOneDecimal(t *testing.T) {
	value, unit := FormatSpeed(5 * 1_048_576)
	if value != "5.0" || unit != "MB/s" {
		t.Fatalf("5 MiB 应显示 5.0 MB/s, 实际 %s %s", value, unit)
	}
}

func TestFormatSpeedMBNoDecimal(t *testing.T) {
	value, unit := FormatSpeed(10 * 1_048_576)
	if value != "10" || unit != "MB/s" {
		t.Fatalf("10 MiB 应显示 10 MB/s, 实际 %s %s", value, unit)
	}
}

func TestFormatSpeedSwitchPoint(t *testing.T) {
	// Exactly at the switch the MB path takes over even though the value
	// renders below 1.0.
	value, unit := FormatSpeed(1_024_000)
	if unit != "MB/s" {
		t.Fatalf("1024000 字节应切换到 MB/s, 实际 %s %s", value, unit)
	}
	if value != "1.0" {
		t.Fatalf("1024000 字节应显示 1.0, 实际 %s", value)
	}
}

func TestFormatSpeedZero(t *testing.T) {
	value, unit := FormatSpeed(0)
	if value != "0" || unit != "KB/s" {
		t.Fatalf("零流量应显示 0 KB/s, 实际 %s %s", value, unit)
	}
}

func TestFormatUsage(t *testing.T) {
	if got := FormatUsage(1_610_612_736, false); got != "1.5 GB" {
		t.Fatalf("1.5 GiB 应显示 1.5 GB, 实际 %s", got)
	}
	if got := FormatUsage(1_610_612_736, true); got != "1536.0 MB" {
		t.Fatalf("强制 MB 模式应显示 1536.0 MB, 实际 %s", got)
	}
	if got := FormatUsage(52_428_800, false); got != "50.0 MB" {
		t.Fatalf("50 MiB 应显示 50.0 MB, 实际 %s", got)
	}
}
