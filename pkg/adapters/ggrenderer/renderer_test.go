package ggrenderer

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/user/shardbench/pkg/ports"
)

func TestRenderer_RenderPNG(t *testing.T) {
	tests := []struct {
		name          string
		chart         ports.Chart
		width, height int
	}{
		{
			name: "explicit size",
			chart: ports.Chart{
				Title: "Throughput", Unit: "samples/s", Width: 640, Height: 360,
				Bars: []ports.Bar{
					{Label: "0-fully-online", Value: 800, Err: 40},
					{Label: "2-scale-up", Value: 1500, Err: 25},
					{Label: "3-scale-down", Value: 1400},
				},
			},
			width: 640, height: 360,
		},
		{
			name:  "default size",
			chart: ports.Chart{Title: "Offline", Bars: []ports.Bar{{Label: "a", Value: 1}}},
			width: defaultWidth, height: defaultHeight,
		},
		{
			name:  "all zero",
			chart: ports.Chart{Bars: []ports.Bar{{Label: "a"}, {Label: "b"}}},
			width: defaultWidth, height: defaultHeight,
		},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := r.RenderPNG(tt.chart)
			if err != nil {
				t.Fatalf("RenderPNG failed: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("output is not a PNG: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("expected %dx%d, got %dx%d", tt.width, tt.height, b.Dx(), b.Dy())
			}
		})
	}
}

func TestRenderer_RenderPNGErrors(t *testing.T) {
	r := New()
	if _, err := r.RenderPNG(ports.Chart{Title: "empty"}); err == nil {
		t.Error("expected error for a chart without bars")
	}
	if _, err := r.RenderPNG(ports.Chart{Width: 50, Height: 50, Bars: []ports.Bar{{Value: 1}}}); err == nil {
		t.Error("expected error for a tiny chart")
	}
}

func TestScaleMax(t *testing.T) {
	tests := []struct {
		bars []ports.Bar
		want float64
	}{
		{[]ports.Bar{{Value: 10}, {Value: 5, Err: 10}}, 16.5},
		{[]ports.Bar{{Value: 0}}, 1},
		{[]ports.Bar{{Value: math.Inf(1)}}, 1},
	}
	for _, tt := range tests {
		if got := scaleMax(tt.bars); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("scaleMax(%v) = %v, want %v", tt.bars, got, tt.want)
		}
	}
}
