package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/alert"
	"netspeed-daemon/internal/store"
	"netspeed-daemon/internal/usage"
)

const (
	connDeadline    = 10 * time.Second
	dispatchTimeout = 10 * time.Second
)

// Server answers control requests against the daemon's open store handle.
type Server struct {
	path   string
	store  *store.Store
	agg    *usage.Aggregator
	logger zerolog.Logger

	ln        net.Listener
	closeOnce sync.Once
}

// NewServer constructs a control server listening at the given socket path.
func NewServer(path string, st *store.Store, agg *usage.Aggregator, logger zerolog.Logger) *Server {
	return &Server{
		path:   path,
		store:  st,
		agg:    agg,
		logger: logger.With().Str("component", "control").Logger(),
	}
}

// Start begins serving. The caller must already hold the single-instance
// lock, which is what makes removing a stale socket file safe.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create control socket dir: %w", err)
	}
	_ = os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	s.ln = ln
	go s.accept()

	s.logger.Info().Str("socket", s.path).Msg("control socket listening")
	return nil
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.ln != nil {
			err = s.ln.Close()
		}
		os.Remove(s.path)
	})
	return err
}

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn().Err(err).Msg("malformed control request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	resp := s.dispatch(ctx, req)
	cancel()

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn().Err(err).Str("op", req.Op).Msg("write control response")
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpSet:
		if err := s.store.ApplySetting(req.Name, req.Value); err != nil {
			return errResponse(err)
		}
		s.logger.Info().Str("setting", req.Name).Str("value", req.Value).Msg("setting updated")
		return Response{}

	case OpGet:
		settings := make(map[string]string)
		for _, name := range store.SettingNames() {
			v, err := s.store.ReadSetting(name)
			if err != nil {
				return errResponse(err)
			}
			settings[name] = v
		}
		return Response{Settings: settings}

	case OpReset:
		now := time.Now()
		if err := s.store.SetResetMarker(now); err != nil {
			return errResponse(fmt.Errorf("set reset marker: %w", err))
		}
		if err := s.store.ResetAlertFlags(now.Format(alert.DateLayout)); err != nil {
			return errResponse(fmt.Errorf("clear alert flags: %w", err))
		}
		s.logger.Info().Time("at", now).Msg("usage statistics reset")
		return Response{}

	case OpStatus:
		return s.statusResponse(ctx)

	case OpUsage:
		records, rollup, err := s.agg.DailyRecords(ctx, time.Now())
		if err != nil {
			return errResponse(err)
		}
		return Response{Usage: &UsageReport{
			Records: records,
			Rollup:  rollup,
			ForceMB: s.store.GetBool(store.KeyUnitInMB, false),
		}}

	case OpAlerts:
		limit := req.Limit
		if limit <= 0 {
			limit = 20
		}
		records, err := s.store.ListRecentAlerts(limit)
		if err != nil {
			return errResponse(err)
		}
		return Response{Alerts: records}

	default:
		return Response{Err: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (s *Server) statusResponse(ctx context.Context) Response {
	now := time.Now()
	mobile, wifi, src, err := s.agg.TodayUsage(ctx, now)
	if err != nil {
		return errResponse(fmt.Errorf("read today's usage: %w", err))
	}

	report := &StatusReport{
		Day:          now.Format("2006-01-02"),
		Mobile:       mobile,
		Wifi:         wifi,
		Source:       src.String(),
		ForceMB:      s.store.GetBool(store.KeyUnitInMB, false),
		LimitEnabled: s.store.GetBool(store.KeyDailyLimitEnabled, false),
		LimitMB:      s.store.GetFloat(store.KeyDailyLimitMB, 0),
	}
	state := s.store.AlertState()
	report.Fired80 = state.Fired80
	report.Fired100 = state.Fired100
	if marker := s.store.ResetMarker(); !marker.IsZero() {
		report.ResetAt = marker.Format(time.RFC3339)
	}
	return Response{Status: report}
}

func errResponse(err error) Response {
	return Response{Err: err.Error()}
}
