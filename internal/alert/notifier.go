package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Alert kinds.
const (
	Kind80  = "limit_80"
	Kind100 = "limit_100"
)

// Notification 封装一次配额告警的上下文。
type Notification struct {
	Kind       string
	Title      string
	Message    string
	UsageBytes int64
	LimitBytes int64
	Percent    decimal.Decimal
	FiredAt    time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// DesktopNotifier delivers interrupting desktop notifications. Unlike the
// live status channel these are sound-enabled and never deduplicated.
type DesktopNotifier struct {
	appName string
	logger  zerolog.Logger
}

// NewDesktopNotifier constructs the desktop alert notifier.
func NewDesktopNotifier(appName string, logger zerolog.Logger) *DesktopNotifier {
	if appName == "" {
		appName = "netspeedd"
	}
	return &DesktopNotifier{
		appName: appName,
		logger:  logger.With().Str("component", "alert_desktop").Logger(),
	}
}

// Notify posts the alert through the desktop notification service.
func (n *DesktopNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	beeep.AppName = n.appName
	if err := beeep.Alert(note.Title, note.Message, ""); err != nil {
		return fmt.Errorf("post desktop alert: %w", err)
	}

	n.logger.Info().
		Str("kind", note.Kind).
		Str("percent", note.Percent.StringFixed(1)).
		Int64("usage_bytes", note.UsageBytes).
		Msg("告警已发送 (desktop)")
	return nil
}

var _ Notifier = (*DesktopNotifier)(nil)
