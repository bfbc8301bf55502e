package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"netspeed-daemon/internal/alert"
	"netspeed-daemon/internal/control"
	"netspeed-daemon/internal/store"
)

// callDaemon routes a request through the running daemon's control socket.
// handled is false when no daemon is listening, in which case the caller
// opens the state database directly.
func (a *App) callDaemon(req control.Request) (resp control.Response, handled bool, err error) {
	path := a.Config.Control.SocketPath
	if path == "" {
		return control.Response{}, false, nil
	}
	resp, err = control.Call(path, req)
	if err != nil {
		if errors.Is(err, control.ErrUnreachable) {
			return control.Response{}, false, nil
		}
		return control.Response{}, true, err
	}
	return resp, true, nil
}

// Set updates one runtime setting, through the daemon when one is running so
// the edit lands in the store the daemon reads on its next tick. Editing the
// daily limit also clears the fired alert flags so the new threshold is
// evaluated fresh.
func (a *App) Set(name, value string) error {
	if _, handled, err := a.callDaemon(control.Request{Op: control.OpSet, Name: name, Value: value}); handled {
		return err
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return st.ApplySetting(name, value)
}

// Get prints one setting, or all of them when name is empty.
func (a *App) Get(name string) error {
	settings, err := a.readSettings()
	if err != nil {
		return err
	}

	if name != "" {
		v, ok := settings[name]
		if !ok {
			return fmt.Errorf("unknown setting %q", name)
		}
		fmt.Fprintf(os.Stdout, "%s = %s\n", name, v)
		return nil
	}

	for _, n := range store.SettingNames() {
		fmt.Fprintf(os.Stdout, "%s = %s\n", n, settings[n])
	}
	return nil
}

func (a *App) readSettings() (map[string]string, error) {
	if resp, handled, err := a.callDaemon(control.Request{Op: control.OpGet}); handled {
		return resp.Settings, err
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	settings := make(map[string]string, len(store.SettingNames()))
	for _, n := range store.SettingNames() {
		v, err := st.ReadSetting(n)
		if err != nil {
			return nil, err
		}
		settings[n] = v
	}
	return settings, nil
}

// Reset stamps the usage reset marker at now, so range queries count from
// this moment, and clears the fired alert flags.
func (a *App) Reset() error {
	if _, handled, err := a.callDaemon(control.Request{Op: control.OpReset}); handled {
		if err == nil {
			a.Logger.Info().Msg("usage statistics reset")
		}
		return err
	}

	st, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	now := time.Now()
	if err := st.SetResetMarker(now); err != nil {
		return fmt.Errorf("set reset marker: %w", err)
	}
	if err := st.ResetAlertFlags(now.Format(alert.DateLayout)); err != nil {
		return fmt.Errorf("clear alert flags: %w", err)
	}

	a.Logger.Info().Time("at", now).Msg("usage statistics reset")
	return nil
}
