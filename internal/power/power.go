// Package power surfaces display/sleep transitions so the sampling loop can
// back off while nobody is watching the bar.
package power

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// Event reports a visibility transition. DisplayOff true means sampling can
// drop to the slow cadence; false restores the live cadence.
type Event struct {
	DisplayOff bool
}

// EventSource streams visibility transitions until closed. Implementations
// close the Events channel when the underlying watch ends.
type EventSource interface {
	Events() <-chan Event
	Close() error
}

// LogindSource watches the org.freedesktop.login1 PrepareForSleep signal on
// the system bus. Suspend maps to display-off, resume back to display-on.
type LogindSource struct {
	conn      *dbus.Conn
	events    chan Event
	closeOnce sync.Once
	logger    zerolog.Logger
}

var _ EventSource = (*LogindSource)(nil)

func NewLogindSource(logger zerolog.Logger) (*LogindSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe PrepareForSleep: %w", err)
	}

	s := &LogindSource{
		conn:   conn,
		events: make(chan Event, 4),
		logger: logger.With().Str("component", "power").Logger(),
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	go s.pump(signals)
	return s, nil
}

func (s *LogindSource) Events() <-chan Event {
	return s.events
}

func (s *LogindSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *LogindSource) pump(signals <-chan *dbus.Signal) {
	defer close(s.events)
	for sig := range signals {
		if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" || len(sig.Body) != 1 {
			continue
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		s.logger.Debug().Bool("sleeping", sleeping).Msg("power transition")
		select {
		case s.events <- Event{DisplayOff: sleeping}:
		default:
			// Drop rather than block the bus reader; the loop only
			// cares about the latest state.
		}
	}
}
