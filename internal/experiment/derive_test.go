package experiment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/hypolab/internal/model"
)

func TestDerive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Counters
		want Derived
	}{
		{
			name: "views present",
			in:   Counters{Views: 1000, Clicks: 50, ViewContent: 200, Purchases: 10, CTR: 0.9},
			want: Derived{CTR: 0.05, PurchaseRate: 0.05, ClicksPer1000Views: 50},
		},
		{
			name: "purchase rate falls back to views",
			in:   Counters{Views: 500, Clicks: 10, Purchases: 5},
			want: Derived{CTR: 0.02, PurchaseRate: 0.01, ClicksPer1000Views: 20},
		},
		{
			name: "no views uses stored ctr",
			in:   Counters{Clicks: 10, CTR: 0.12, Purchases: 3},
			want: Derived{CTR: 0.12},
		},
		{
			name: "negative and non-finite clamp to zero",
			in:   Counters{Views: -10, Clicks: math.NaN(), ViewContent: math.Inf(1), Purchases: 4, CTR: -1},
			want: Derived{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Derive(tt.in)
			assert.InDelta(t, tt.want.CTR, got.CTR, 1e-12)
			assert.InDelta(t, tt.want.PurchaseRate, got.PurchaseRate, 1e-12)
			assert.InDelta(t, tt.want.ClicksPer1000Views, got.ClicksPer1000Views, 1e-12)
		})
	}
}

func TestCountersFrom(t *testing.T) {
	t.Parallel()

	v := &model.Video{Metrics: map[string]any{
		"views":        int64(1000),
		"clicks":       "50",
		"view_content": -5,
		"purchase":     2.0,
	}}
	c := CountersFrom(v)
	assert.Equal(t, Counters{Views: 1000, Clicks: 50, ViewContent: 0, Purchases: 2}, c)
}
