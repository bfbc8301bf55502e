package store

import (
	"path/filepath"
	"testing"
	"time"

	"netspeed-daemon/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("打开状态库失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPrefsRoundTrip(t *testing.T) {
	st := openTestStore(t)

	if err := st.SetBool(KeyShowSpeed, true); err != nil {
		t.Fatal(err)
	}
	if !st.GetBool(KeyShowSpeed, false) {
		t.Fatal("写入后应读回 true")
	}

	if err := st.SetFloat(KeyDailyLimitMB, 512.5); err != nil {
		t.Fatal(err)
	}
	if got := st.GetFloat(KeyDailyLimitMB, 0); got != 512.5 {
		t.Fatalf("浮点偏好应读回 512.5, 实际 %g", got)
	}

	if err := st.SetString(KeySelectedUnit, "KB"); err != nil {
		t.Fatal(err)
	}
	if got := st.GetString(KeySelectedUnit, ""); got != "KB" {
		t.Fatalf("字符串偏好应读回 KB, 实际 %s", got)
	}
}

func TestPrefsDefaults(t *testing.T) {
	st := openTestStore(t)
	if got := st.GetBool("missing", true); !got {
		t.Fatal("未设置的键应返回默认值")
	}
	if got := st.GetFloat("missing", 42); got != 42 {
		t.Fatalf("未设置的键应返回默认值 42, 实际 %g", got)
	}
	if st.Has("missing") {
		t.Fatal("Has 对未设置的键应为 false")
	}
}

func TestSetDailyLimitClearsAlertFlags(t *testing.T) {
	st := openTestStore(t)

	if err := st.SetBool(KeyAlert80Triggered, true); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBool(KeyAlert100Triggered, true); err != nil {
		t.Fatal(err)
	}

	if err := st.SetDailyLimitMB(1024); err != nil {
		t.Fatal(err)
	}

	state := st.AlertState()
	if state.Fired80 || state.Fired100 {
		t.Fatalf("修改限额应清除两个告警标志: %+v", state)
	}
	if got := st.GetFloat(KeyDailyLimitMB, 0); got != 1024 {
		t.Fatalf("限额应为 1024, 实际 %g", got)
	}
}

func TestSeedOnlyWritesUnsetKeys(t *testing.T) {
	st := openTestStore(t)

	if err := st.SetFloat(KeyDailyLimitMB, 200); err != nil {
		t.Fatal(err)
	}

	err := st.Seed(config.DefaultsConfig{
		ShowSpeed:    true,
		DailyLimitMB: 500,
		SelectedUnit: "MB",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := st.GetFloat(KeyDailyLimitMB, 0); got != 200 {
		t.Fatalf("已有值不应被种子覆盖, 实际 %g", got)
	}
	if !st.GetBool(KeyShowSpeed, false) {
		t.Fatal("未设置的键应被种子写入")
	}
	if got := st.GetString(KeySelectedUnit, ""); got != "MB" {
		t.Fatalf("selected_unit 应被种子写入, 实际 %s", got)
	}
}

func TestResetMarker(t *testing.T) {
	st := openTestStore(t)

	if !st.ResetMarker().IsZero() {
		t.Fatal("未设置时重置标记应为零值")
	}

	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local)
	if err := st.SetResetMarker(at); err != nil {
		t.Fatal(err)
	}
	if got := st.ResetMarker(); !got.Equal(at) {
		t.Fatalf("重置标记应为 %v, 实际 %v", at, got)
	}
}

func TestManualCounters(t *testing.T) {
	st := openTestStore(t)
	day := DayKey(time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local))

	if err := st.AddManualUsage(day, 100, 200); err != nil {
		t.Fatal(err)
	}
	if err := st.AddManualUsage(day, 50, 25); err != nil {
		t.Fatal(err)
	}

	mobile, wifi, err := st.ManualUsage(day)
	if err != nil {
		t.Fatal(err)
	}
	if mobile != 150 || wifi != 225 {
		t.Fatalf("计数器应累加: mobile=%d wifi=%d", mobile, wifi)
	}

	if err := st.SetManualUsage(day, 1000, 2000); err != nil {
		t.Fatal(err)
	}
	mobile, wifi, err = st.ManualUsage(day)
	if err != nil {
		t.Fatal(err)
	}
	if mobile != 1000 || wifi != 2000 {
		t.Fatalf("SetManualUsage 应覆盖: mobile=%d wifi=%d", mobile, wifi)
	}
}

func TestPruneManualBefore(t *testing.T) {
	st := openTestStore(t)
	old := DayKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local))
	recent := DayKey(time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local))

	if err := st.AddManualUsage(old, 10, 10); err != nil {
		t.Fatal(err)
	}
	if err := st.AddManualUsage(recent, 20, 20); err != nil {
		t.Fatal(err)
	}

	removed, err := st.PruneManualBefore(DayKey(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		// one mobile key and one wifi key for the old day
		t.Fatalf("应删除 2 个过期键, 实际 %d", removed)
	}

	mobile, wifi, err := st.ManualUsage(recent)
	if err != nil {
		t.Fatal(err)
	}
	if mobile != 20 || wifi != 20 {
		t.Fatal("清理不应影响保留范围内的计数器")
	}
}

func TestAlertLifecycle(t *testing.T) {
	st := openTestStore(t)

	rec, err := st.MarkAlertFired(KeyAlert80Triggered, AlertRecord{
		FiredAt:    time.Now(),
		Kind:       "limit_80",
		UsageBytes: 800,
		LimitBytes: 1000,
		Percent:    80,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 {
		t.Fatal("落盘的告警应分配序号")
	}

	state := st.AlertState()
	if !state.Fired80 || state.Fired100 {
		t.Fatalf("仅 80%% 标志应置位: %+v", state)
	}

	records, err := st.ListRecentAlerts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Kind != "limit_80" {
		t.Fatalf("审计记录错误: %+v", records)
	}

	if err := st.ResetAlertFlags("2026-05-02"); err != nil {
		t.Fatal(err)
	}
	state = st.AlertState()
	if state.Fired80 || state.Fired100 {
		t.Fatal("翻转日期应清除两个标志")
	}
	if state.LastAlertDate != "2026-05-02" {
		t.Fatalf("翻转日期应落盘: %s", state.LastAlertDate)
	}
}

func TestDeleteAlertsBefore(t *testing.T) {
	st := openTestStore(t)

	oldRec := AlertRecord{FiredAt: time.Now().AddDate(0, 0, -90), Kind: "limit_80"}
	newRec := AlertRecord{FiredAt: time.Now(), Kind: "limit_100"}
	if _, err := st.MarkAlertFired(KeyAlert80Triggered, oldRec); err != nil {
		t.Fatal(err)
	}
	if _, err := st.MarkAlertFired(KeyAlert100Triggered, newRec); err != nil {
		t.Fatal(err)
	}

	deleted, err := st.DeleteAlertsBefore(time.Now().AddDate(0, 0, -60))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("应删除 1 条过期审计, 实际 %d", deleted)
	}

	records, err := st.ListRecentAlerts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Kind != "limit_100" {
		t.Fatalf("保留的记录错误: %+v", records)
	}
}

func TestApplySettingParsesByKind(t *testing.T) {
	st := openTestStore(t)

	if err := st.ApplySetting("show_speed", "false"); err != nil {
		t.Fatal(err)
	}
	if st.GetBool(KeyShowSpeed, true) {
		t.Fatal("show_speed 应被写为 false")
	}

	if err := st.ApplySetting("selected_unit", "KB"); err != nil {
		t.Fatal(err)
	}
	if got := st.GetString(KeySelectedUnit, ""); got != "KB" {
		t.Fatalf("selected_unit 应为 KB, 实际 %q", got)
	}

	if err := st.ApplySetting("show_speed", "maybe"); err == nil {
		t.Fatal("布尔设置应拒绝非法值")
	}
	if err := st.ApplySetting("bogus", "1"); err == nil {
		t.Fatal("未知设置应返回错误")
	}
}

func TestApplySettingDailyLimitClearsFlags(t *testing.T) {
	st := openTestStore(t)

	if err := st.SetBool(KeyAlert80Triggered, true); err != nil {
		t.Fatal(err)
	}
	if err := st.ApplySetting("daily_limit_mb", "512.5"); err != nil {
		t.Fatal(err)
	}

	if got := st.GetFloat(KeyDailyLimitMB, 0); got != 512.5 {
		t.Fatalf("限额应为 512.5, 实际 %g", got)
	}
	if st.AlertState().Fired80 {
		t.Fatal("修改限额应清除已触发标志")
	}
}

func TestReadSettingRendersValues(t *testing.T) {
	st := openTestStore(t)

	if err := st.SetFloat(KeyDailyLimitMB, 512.5); err != nil {
		t.Fatal(err)
	}
	got, err := st.ReadSetting("daily_limit_mb")
	if err != nil {
		t.Fatal(err)
	}
	if got != "512.5" {
		t.Fatalf("daily_limit_mb 应渲染为 512.5, 实际 %q", got)
	}

	if _, err := st.ReadSetting("bogus"); err == nil {
		t.Fatal("未知设置应返回错误")
	}
}
