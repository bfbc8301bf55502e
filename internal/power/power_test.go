package power

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

func TestPumpTranslatesPrepareForSleep(t *testing.T) {
	s := &LogindSource{
		events: make(chan Event, 4),
		logger: zerolog.Nop(),
	}

	signals := make(chan *dbus.Signal, 4)
	go s.pump(signals)

	signals <- &dbus.Signal{
		Name: "org.freedesktop.login1.Manager.PrepareForSleep",
		Body: []interface{}{true},
	}
	// Irrelevant signals and malformed bodies are ignored.
	signals <- &dbus.Signal{Name: "org.freedesktop.login1.Manager.SessionNew"}
	signals <- &dbus.Signal{
		Name: "org.freedesktop.login1.Manager.PrepareForSleep",
		Body: []interface{}{"not a bool"},
	}
	signals <- &dbus.Signal{
		Name: "org.freedesktop.login1.Manager.PrepareForSleep",
		Body: []interface{}{false},
	}
	close(signals)

	var got []Event
	for ev := range s.events {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("应产生 2 个事件, 实际 %d: %+v", len(got), got)
	}
	if !got[0].DisplayOff || got[1].DisplayOff {
		t.Fatalf("事件顺序应为息屏后亮屏: %+v", got)
	}
}

func TestPumpClosesEventsWhenSignalsEnd(t *testing.T) {
	s := &LogindSource{
		events: make(chan Event, 1),
		logger: zerolog.Nop(),
	}

	signals := make(chan *dbus.Signal)
	go s.pump(signals)
	close(signals)

	select {
	case _, ok := <-s.events:
		if ok {
			t.Fatal("关闭信号源后不应再有事件")
		}
	case <-time.After(time.Second):
		t.Fatal("事件通道应随信号源关闭")
	}
}
