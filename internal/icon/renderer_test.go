package icon

import (
	"fmt"
	"image"
	"testing"

	"github.com/rs/zerolog"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(48, 15, zerolog.Nop())
	if err != nil {
		t.Fatalf("构造渲染器失败: %v", err)
	}
	return r
}

func TestRenderProducesGlyph(t *testing.T) {
	r := newTestRenderer(t)
	img := r.Render("999", "KB/s")
	if img == nil {
		t.Fatal("渲染结果不应为空")
	}
	if img.Bounds() != image.Rect(0, 0, 48, 48) {
		t.Fatalf("图标尺寸应为 48x48, 实际 %v", img.Bounds())
	}

	// Some pixel of the speed text must be non-transparent.
	opaque := false
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !opaque; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				opaque = true
				break
			}
		}
	}
	if !opaque {
		t.Fatal("渲染的图标应包含可见像素")
	}
}

func TestRenderCachesByContent(t *testing.T) {
	r := newTestRenderer(t)

	first := r.Render("5.0", "MB/s")
	second := r.Render("5.0", "MB/s")
	if first != second {
		t.Fatal("相同内容应命中缓存返回同一图像")
	}
	if r.CacheLen() != 1 {
		t.Fatalf("缓存应只有 1 项, 实际 %d", r.CacheLen())
	}
}

func TestRenderCacheBounded(t *testing.T) {
	r := newTestRenderer(t)

	for i := 0; i < 40; i++ {
		r.Render(fmt.Sprintf("%d", i), "KB/s")
	}
	if r.CacheLen() > 15 {
		t.Fatalf("缓存不应超过 15 项, 实际 %d", r.CacheLen())
	}

	// The newest entry survives eviction, the oldest does not.
	newest := r.Render("39", "KB/s")
	if newest != r.Render("39", "KB/s") {
		t.Fatal("最新条目应仍在缓存中")
	}
}

func TestRenderOverflowStaysInBounds(t *testing.T) {
	r := newTestRenderer(t)
	img := r.Render("1023.9", "KB/s")
	if img.Bounds() != image.Rect(0, 0, 48, 48) {
		t.Fatalf("超宽文本压缩后尺寸不变, 实际 %v", img.Bounds())
	}
}
