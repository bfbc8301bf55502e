package usage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/netstat"
	"netspeed-daemon/internal/store"
)

// fakeProvider answers range queries from a fixed per-hour rate, or fails.
type fakeProvider struct {
	bytesPerHour int64
	err          error
	failOnDay    time.Time
	calls        int
}

func (f *fakeProvider) RangeSum(ctx context.Context, transport netstat.Transport, start, end time.Time) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if !f.failOnDay.IsZero() && start.Equal(f.failOnDay) {
		return 0, errors.New("transient glitch")
	}
	hours := int64(end.Sub(start) / time.Hour)
	return hours * f.bytesPerHour, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("打开状态库失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUsageInRangePrivileged(t *testing.T) {
	st := openTestStore(t)
	provider := &fakeProvider{bytesPerHour: 100}
	agg := NewAggregator(provider, st, 30, zerolog.Nop())

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	mobile, wifi, src, err := agg.UsageInRange(context.Background(), start, start.Add(10*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if src != SourcePrivileged {
		t.Fatalf("来源应为特权通道, 实际 %s", src)
	}
	if mobile != 1000 || wifi != 1000 {
		t.Fatalf("用量错误: mobile=%d wifi=%d", mobile, wifi)
	}
}

func TestUsageInRangeFallback(t *testing.T) {
	st := openTestStore(t)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	if err := st.SetManualUsage(store.DayKey(day), 111, 222); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{err: ErrUnavailable}
	agg := NewAggregator(provider, st, 30, zerolog.Nop())

	mobile, wifi, src, err := agg.UsageInRange(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("特权通道缺失时应回退而非报错: %v", err)
	}
	if src != SourceFallback {
		t.Fatalf("来源应为回退计数器, 实际 %s", src)
	}
	if mobile != 111 || wifi != 222 {
		t.Fatalf("回退用量应逐字节等于手工计数器: mobile=%d wifi=%d", mobile, wifi)
	}
}

func TestUsageInRangeOtherErrorPropagates(t *testing.T) {
	st := openTestStore(t)
	provider := &fakeProvider{err: errors.New("io failure")}
	agg := NewAggregator(provider, st, 30, zerolog.Nop())

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	if _, _, _, err := agg.UsageInRange(context.Background(), start, start.Add(time.Hour)); err == nil {
		t.Fatal("非缺失类错误应向上传播")
	}
}

func TestUsageInRangeResetMarkerClamp(t *testing.T) {
	st := openTestStore(t)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	marker := day.Add(6 * time.Hour)
	if err := st.SetResetMarker(marker); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{bytesPerHour: 100}
	agg := NewAggregator(provider, st, 30, zerolog.Nop())

	// Query the full day: only the 18 hours after the marker count.
	mobile, _, _, err := agg.UsageInRange(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if mobile != 1800 {
		t.Fatalf("范围应被重置标记截断到 18 小时, 实际 %d", mobile)
	}

	// A range entirely before the marker collapses to zero.
	mobile, wifi, _, err := agg.UsageInRange(context.Background(), day, marker)
	if err != nil {
		t.Fatal(err)
	}
	if mobile != 0 || wifi != 0 {
		t.Fatalf("标记之前的范围应为零: mobile=%d wifi=%d", mobile, wifi)
	}
}

func TestDailyRecordsToleratesSingleDayFailure(t *testing.T) {
	st := openTestStore(t)
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	failDay := time.Date(2026, 5, 8, 0, 0, 0, 0, time.Local)

	provider := &fakeProvider{bytesPerHour: 1, failOnDay: failDay}
	agg := NewAggregator(provider, st, 30, zerolog.Nop())

	records, rollup, err := agg.DailyRecords(context.Background(), now)
	if err != nil {
		t.Fatalf("单日失败不应中止扫描: %v", err)
	}
	if len(records) != 30 {
		t.Fatalf("应产生 30 条记录, 实际 %d", len(records))
	}

	for _, rec := range records {
		if rec.DayStart.Equal(failDay) {
			if rec.Total() != 0 {
				t.Fatalf("失败日应替换为零, 实际 %d", rec.Total())
			}
		}
	}

	// 30 whole days at 24 bytes each, minus the failed day.
	wantMobile := int64(29 * 24)
	if rollup.Mobile30 != wantMobile {
		t.Fatalf("30 日汇总错误: %d != %d", rollup.Mobile30, wantMobile)
	}
}

func TestPrivilegedAvailable(t *testing.T) {
	st := openTestStore(t)

	agg := NewAggregator(&fakeProvider{bytesPerHour: 1}, st, 30, zerolog.Nop())
	if !agg.PrivilegedAvailable(context.Background()) {
		t.Fatal("正常提供方应判定为可用")
	}

	agg = NewAggregator(&fakeProvider{err: ErrUnavailable}, st, 30, zerolog.Nop())
	if agg.PrivilegedAvailable(context.Background()) {
		t.Fatal("缺失提供方应判定为不可用")
	}

	// A failing but installed provider still counts as available.
	agg = NewAggregator(&fakeProvider{err: errors.New("flaky")}, st, 30, zerolog.Nop())
	if !agg.PrivilegedAvailable(context.Background()) {
		t.Fatal("故障但存在的提供方不应触发回退")
	}
}
