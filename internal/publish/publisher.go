package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Status is the machine-readable surface next to the icon. The shape
// follows the waybar custom-module contract so the files can feed a status
// bar directly.
type Status struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

// Publisher writes the live icon and status files. Writes are atomic
// (temp file then rename) and skipped entirely when the content is
// identical to what was last published, so an idle link causes no disk
// churn and no bar refresh.
type Publisher struct {
	dir        string
	iconFile   string
	statusFile string
	logger     zerolog.Logger

	lastIcon   []byte
	lastStatus []byte
}

func NewPublisher(dir, iconFile, statusFile string, logger zerolog.Logger) (*Publisher, error) {
	if dir == "" {
		return nil, fmt.Errorf("publish directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create publish directory: %w", err)
	}
	return &Publisher{
		dir:        dir,
		iconFile:   iconFile,
		statusFile: statusFile,
		logger:     logger.With().Str("component", "publish").Logger(),
	}, nil
}

// Publish emits the icon and status for one tick. Either artifact is
// rewritten only when its encoded bytes differ from the previous tick.
func (p *Publisher) Publish(icon image.Image, status Status) error {
	var iconBuf bytes.Buffer
	if icon != nil {
		if err := png.Encode(&iconBuf, icon); err != nil {
			return fmt.Errorf("encode icon: %w", err)
		}
	}

	statusBuf, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	statusBuf = append(statusBuf, '\n')

	if icon != nil && !bytes.Equal(iconBuf.Bytes(), p.lastIcon) {
		if err := p.writeAtomic(p.iconFile, iconBuf.Bytes()); err != nil {
			return fmt.Errorf("write icon: %w", err)
		}
		p.lastIcon = iconBuf.Bytes()
	}

	if !bytes.Equal(statusBuf, p.lastStatus) {
		if err := p.writeAtomic(p.statusFile, statusBuf); err != nil {
			return fmt.Errorf("write status: %w", err)
		}
		p.lastStatus = statusBuf
	}
	return nil
}

// Clear removes the published artifacts, used on orderly shutdown so the
// bar does not keep showing a stale reading.
func (p *Publisher) Clear() {
	for _, name := range []string{p.iconFile, p.statusFile} {
		path := filepath.Join(p.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("file", path).Msg("remove published file")
		}
	}
	p.lastIcon = nil
	p.lastStatus = nil
}

// writeAtomic stages the content in a temp file in the same directory and
// renames it into place, so readers never observe a partial file.
func (p *Publisher) writeAtomic(name string, data []byte) error {
	final := filepath.Join(p.dir, name)
	tmp, err := os.CreateTemp(p.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
