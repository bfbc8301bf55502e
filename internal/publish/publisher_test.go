package publish

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newTestPublisher(t *testing.T) (*Publisher, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := NewPublisher(dir, "icon.png", "status.json", zerolog.Nop())
	if err != nil {
		t.Fatalf("构造发布器失败: %v", err)
	}
	return p, dir
}

func TestPublishWritesBothFiles(t *testing.T) {
	p, dir := newTestPublisher(t)

	status := Status{Text: "999 KB/s", Tooltip: "↓ 500 KB/s\n↑ 499 KB/s", Class: "normal"}
	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "icon.png")); err != nil {
		t.Fatalf("应写出 icon.png: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "status.json"))
	if err != nil {
		t.Fatalf("应写出 status.json: %v", err)
	}
	var got Status
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("状态文件应为合法 JSON: %v", err)
	}
	if got != status {
		t.Fatalf("状态内容不一致: %+v", got)
	}
}

func TestPublishSkipsUnchangedContent(t *testing.T) {
	p, dir := newTestPublisher(t)
	status := Status{Text: "0 KB/s", Class: "normal"}

	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}

	statusPath := filepath.Join(dir, "status.json")
	// Remove the file behind the publisher's back: an unchanged publish
	// must not recreate it.
	if err := os.Remove(statusPath); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(statusPath); !os.IsNotExist(err) {
		t.Fatal("内容未变化时不应重写状态文件")
	}

	// Changed content writes again.
	status.Text = "1.0 MB/s"
	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(statusPath); err != nil {
		t.Fatalf("内容变化后应重写状态文件: %v", err)
	}
}

func TestPublishIconChangeDetection(t *testing.T) {
	p, dir := newTestPublisher(t)
	status := Status{Text: "x"}

	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}
	iconPath := filepath.Join(dir, "icon.png")
	if err := os.Remove(iconPath); err != nil {
		t.Fatal(err)
	}

	// Same icon, same status: neither file comes back.
	if err := p.Publish(testImage(color.White), status); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(iconPath); !os.IsNotExist(err) {
		t.Fatal("图标未变化时不应重写")
	}

	// A different icon is written even though the status is unchanged.
	if err := p.Publish(testImage(color.Black), status); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(iconPath); err != nil {
		t.Fatalf("图标变化后应重写: %v", err)
	}
}

func TestPublishNilIcon(t *testing.T) {
	p, dir := newTestPublisher(t)

	if err := p.Publish(nil, Status{Text: "usage only"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "status.json")); err != nil {
		t.Fatalf("无图标时仍应写出状态文件: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "icon.png")); !os.IsNotExist(err) {
		t.Fatal("无图标时不应写出 icon.png")
	}
}

func TestClearRemovesArtifacts(t *testing.T) {
	p, dir := newTestPublisher(t)

	if err := p.Publish(testImage(color.White), Status{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	p.Clear()

	if _, err := os.Stat(filepath.Join(dir, "icon.png")); !os.IsNotExist(err) {
		t.Fatal("Clear 应删除图标文件")
	}
	if _, err := os.Stat(filepath.Join(dir, "status.json")); !os.IsNotExist(err) {
		t.Fatal("Clear 应删除状态文件")
	}

	// After Clear the gate is reset; the same content publishes again.
	if err := p.Publish(testImage(color.White), Status{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "status.json")); err != nil {
		t.Fatalf("Clear 之后应允许重新发布: %v", err)
	}
}
