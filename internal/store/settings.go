package store

import (
	"fmt"
	"strconv"
)

const (
	kindBool   = "bool"
	kindFloat  = "float"
	kindString = "string"
)

type settingDef struct {
	key  string
	kind string
}

// settingDefs maps the public setting names to their store key and value
// type. The names are shared with every collaborator that edits settings.
var settingDefs = map[string]settingDef{
	"show_speed":          {KeyShowSpeed, kindBool},
	"show_up_down":        {KeyShowUpDown, kindBool},
	"show_wifi_signal":    {KeyShowWifiSignal, kindBool},
	"daily_limit_enabled": {KeyDailyLimitEnabled, kindBool},
	"daily_limit_mb":      {KeyDailyLimitMB, kindFloat},
	"selected_unit":       {KeySelectedUnit, kindString},
	"unit_in_mb":          {KeyUnitInMB, kindBool},
}

var settingOrder = []string{
	"show_speed",
	"show_up_down",
	"show_wifi_signal",
	"daily_limit_enabled",
	"daily_limit_mb",
	"selected_unit",
	"unit_in_mb",
}

// SettingNames lists the editable setting names in display order.
func SettingNames() []string {
	return append([]string(nil), settingOrder...)
}

// ApplySetting parses and writes one named setting. Editing the daily limit
// routes through SetDailyLimitMB so the fired alert flags are cleared in the
// same transaction.
func (s *Store) ApplySetting(name, value string) error {
	def, ok := settingDefs[name]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}

	switch def.kind {
	case kindBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s expects a boolean: %w", name, err)
		}
		return s.SetBool(def.key, v)
	case kindFloat:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("setting %s expects a number: %w", name, err)
		}
		if def.key == KeyDailyLimitMB {
			return s.SetDailyLimitMB(v)
		}
		return s.SetFloat(def.key, v)
	default:
		return s.SetString(def.key, value)
	}
}

// ReadSetting renders one named setting as a string.
func (s *Store) ReadSetting(name string) (string, error) {
	def, ok := settingDefs[name]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", name)
	}

	switch def.kind {
	case kindBool:
		return strconv.FormatBool(s.GetBool(def.key, false)), nil
	case kindFloat:
		return strconv.FormatFloat(s.GetFloat(def.key, 0), 'g', -1, 64), nil
	default:
		return s.GetString(def.key, ""), nil
	}
}
