// Package control exposes the running daemon's state store and usage queries
// over a unix socket. The state database is held under an exclusive file lock
// for the life of the daemon, so settings and reporting commands issued while
// it runs are answered here instead of opening the database a second time.
package control

import (
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

// Operation identifiers.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpReset  = "reset"
	OpStatus = "status"
	OpUsage  = "usage"
	OpAlerts = "alerts"
)

// Request is one control call from a CLI invocation to the daemon.
type Request struct {
	Op    string `json:"op"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Response carries the op-specific payload, or Err when the op failed.
type Response struct {
	Err      string              `json:"err,omitempty"`
	Settings map[string]string   `json:"settings,omitempty"`
	Usage    *UsageReport        `json:"usage,omitempty"`
	Alerts   []store.AlertRecord `json:"alerts,omitempty"`
	Status   *StatusReport       `json:"status,omitempty"`
}

// UsageReport mirrors the aggregator's daily table for remote rendering.
type UsageReport struct {
	Records []usage.DailyRecord `json:"records"`
	Rollup  usage.Rollup        `json:"rollup"`
	ForceMB bool                `json:"force_mb"`
}

// StatusReport is the one-shot summary payload.
type StatusReport struct {
	Day          string  `json:"day"`
	Mobile       int64   `json:"mobile"`
	Wifi         int64   `json:"wifi"`
	Source       string  `json:"source"`
	ForceMB      bool    `json:"force_mb"`
	LimitEnabled bool    `json:"limit_enabled"`
	LimitMB      float64 `json:"limit_mb"`
	Fired80      bool    `json:"fired_80"`
	Fired100     bool    `json:"fired_100"`
	ResetAt      string  `json:"reset_at,omitempty"`
}
