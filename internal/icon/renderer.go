package icon

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype/truetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	// layout fractions of the square glyph, carried from the status-bar
	// icon geometry: speed text baseline at 58% height, unit text at the
	// bottom edge, both capped at 94% width.
	speedSizeFrac     = 0.72
	speedBaselineFrac = 0.58
	unitSizeFrac      = 0.38
	unitBaselineFrac  = 0.95
	maxWidthFrac      = 0.94
)

// Renderer rasterises a speed value and unit into a square status glyph.
// Render is deterministic in its two string inputs, which is what makes the
// content-keyed cache sound.
type Renderer struct {
	size     int
	font     *truetype.Font
	cache    *lru.Cache[string, image.Image]
	fallback image.Image
	logger   zerolog.Logger
}

// NewRenderer constructs a renderer producing size×size glyphs with a
// bounded LRU cache of cacheCap entries.
func NewRenderer(size, cacheCap int, logger zerolog.Logger) (*Renderer, error) {
	if size <= 0 {
		return nil, errors.New("icon size must be positive")
	}
	if cacheCap <= 0 {
		cacheCap = 15
	}

	fnt, err := chart.GetDefaultFont()
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, image.Image](cacheCap)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		size:   size,
		font:   fnt,
		cache:  cache,
		logger: logger.With().Str("component", "icon").Logger(),
	}
	r.fallback = r.defaultGlyph()
	return r, nil
}

// Render returns the glyph for the given speed and unit text, served from
// the cache when the same content was rendered before. A rendering failure
// degrades to the static default glyph rather than omitting the icon.
func (r *Renderer) Render(speedText, unitText string) image.Image {
	key := speedText + "|" + unitText
	if img, ok := r.cache.Get(key); ok {
		return img
	}

	img, err := r.render(speedText, unitText)
	if err != nil {
		r.logger.Warn().Err(err).Str("speed", speedText).Str("unit", unitText).Msg("glyph render failed; using default icon")
		return r.fallback
	}

	r.cache.Add(key, img)
	return img
}

// CacheLen reports the number of resident cache entries.
func (r *Renderer) CacheLen() int {
	return r.cache.Len()
}

// Size reports the glyph pixel dimension.
func (r *Renderer) Size() int {
	return r.size
}

func (r *Renderer) render(speedText, unitText string) (image.Image, error) {
	if r.font == nil {
		return nil, errors.New("renderer font not loaded")
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	if speedText != "" {
		r.drawText(dst, speedText, speedSizeFrac, speedBaselineFrac)
	}
	if unitText != "" {
		r.drawText(dst, unitText, unitSizeFrac, unitBaselineFrac)
	}
	return dst, nil
}

// drawText centers one line of white text. Overflow is squeezed
// horizontally only: the line is drawn at natural width on a staging canvas
// and scaled down in X, never in Y.
func (r *Renderer) drawText(dst *image.RGBA, text string, sizeFrac, baselineFrac float64) {
	face := truetype.NewFace(r.font, &truetype.Options{
		Size:    float64(r.size) * sizeFrac,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	drawer := &font.Drawer{
		Src:  image.NewUniform(color.White),
		Face: face,
	}

	width := drawer.MeasureString(text).Ceil()
	maxWidth := int(float64(r.size) * maxWidthFrac)
	baseline := int(float64(r.size) * baselineFrac)

	if width <= maxWidth {
		drawer.Dst = dst
		drawer.Dot = fixed.Point26_6{X: fixed.I((r.size - width) / 2), Y: fixed.I(baseline)}
		drawer.DrawString(text)
		return
	}

	staging := image.NewRGBA(image.Rect(0, 0, width, r.size))
	drawer.Dst = staging
	drawer.Dot = fixed.Point26_6{X: 0, Y: fixed.I(baseline)}
	drawer.DrawString(text)

	left := (r.size - maxWidth) / 2
	target := image.Rect(left, 0, left+maxWidth, r.size)
	xdraw.ApproxBiLinear.Scale(dst, target, staging, staging.Bounds(), xdraw.Over, nil)
}

// defaultGlyph is the static fallback icon: a plain white bar, no text.
func (r *Renderer) defaultGlyph() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	barHeight := r.size / 6
	top := (r.size - barHeight) / 2
	bar := image.Rect(r.size/8, top, r.size-r.size/8, top+barHeight)
	draw.Draw(img, bar, image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}
