package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoAccessors(t *testing.T) {
	t.Parallel()

	v := &Video{Metrics: map[string]any{
		"views":      int64(1200),
		"ctr":        0.04,
		"video_type": " Organic ",
		"hook":       "POV: you forgot the lid",
	}}

	assert.InDelta(t, 1200, v.Float("views"), 0)
	assert.InDelta(t, 0.04, v.Float("ctr"), 1e-12)
	assert.Zero(t, v.Float("clicks"))
	assert.Equal(t, "organic", v.VideoType())
	assert.Equal(t, "POV: you forgot the lid", v.Text("hook"))
	assert.Empty(t, v.Text("notes"))

	var nilVideo *Video
	assert.Zero(t, nilVideo.Float("views"))
	assert.Empty(t, nilVideo.Text("hook"))
}

func TestToFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float64", 1.5, 1.5},
		{"int", 3, 3},
		{"int64", int64(7), 7},
		{"json number", json.Number("2.25"), 2.25},
		{"numeric string", " 42 ", 42},
		{"garbage string", "abc", 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ToFloat(tt.in), 1e-12)
		})
	}
}
