// Package ggrenderer draws result charts using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/user/shardbench/pkg/ports"
)

const (
	defaultWidth  = 800
	defaultHeight = 450
	margin        = 48.0
	labelHeight   = 36.0
)

var (
	background = color.White
	axisColor  = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	barColor   = color.RGBA{R: 0x3b, G: 0x75, B: 0xaf, A: 0xff}
	errColor   = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
)

// Renderer implements ports.ChartRenderer using the gg library.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// RenderPNG draws c as a vertical bar chart with error whiskers and
// returns the PNG bytes.
func (r *Renderer) RenderPNG(c ports.Chart) ([]byte, error) {
	if len(c.Bars) == 0 {
		return nil, fmt.Errorf("chart %q has no bars", c.Title)
	}
	w, h := c.Width, c.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(background)
	dc.Clear()

	top := margin
	bottom := float64(h) - margin - labelHeight
	left := margin
	right := float64(w) - margin/2
	if bottom <= top || right <= left {
		return nil, fmt.Errorf("chart %dx%d is too small", w, h)
	}

	dc.SetColor(axisColor)
	dc.DrawStringAnchored(c.Title, float64(w)/2, margin/2, 0.5, 0.5)

	maxV := scaleMax(c.Bars)
	// Y axis with the unit and top value.
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, bottom)
	dc.DrawLine(left, bottom, right, bottom)
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%.4g", maxV), left-4, top, 1, 0.5)
	dc.DrawStringAnchored("0", left-4, bottom, 1, 0.5)
	if c.Unit != "" {
		dc.DrawStringAnchored(c.Unit, left, top-12, 0, 0.5)
	}

	slot := (right - left) / float64(len(c.Bars))
	barW := slot * 0.6
	yOf := func(v float64) float64 {
		return bottom - (bottom-top)*v/maxV
	}

	for i, b := range c.Bars {
		x := left + slot*float64(i) + (slot-barW)/2
		v := math.Max(b.Value, 0)
		dc.SetColor(barColor)
		dc.DrawRectangle(x, yOf(v), barW, bottom-yOf(v))
		dc.Fill()

		if b.Err > 0 {
			cx := x + barW/2
			lo, hi := yOf(math.Max(v-b.Err, 0)), yOf(v+b.Err)
			dc.SetColor(errColor)
			dc.SetLineWidth(1.5)
			dc.DrawLine(cx, lo, cx, hi)
			dc.DrawLine(cx-barW/6, hi, cx+barW/6, hi)
			dc.DrawLine(cx-barW/6, lo, cx+barW/6, lo)
			dc.Stroke()
		}

		dc.SetColor(axisColor)
		dc.DrawStringWrapped(b.Label, x+barW/2, bottom+4, 0.5, 0, slot, 1.1, gg.AlignCenter)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleMax returns the largest bar extent including whiskers, with
// 10% headroom. It is never zero.
func scaleMax(bars []ports.Bar) float64 {
	var m float64
	for _, b := range bars {
		m = math.Max(m, b.Value+math.Max(b.Err, 0))
	}
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return 1
	}
	return m * 1.1
}

// Ensure Renderer implements ports.ChartRenderer
var _ ports.ChartRenderer = (*Renderer)(nil)
