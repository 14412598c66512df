// Package experiment compares two videos' metrics and decides whether a
// hypothesis is supported.
package experiment

import (
	"math"

	"github.com/sells-group/hypolab/internal/model"
)

// Counters are the raw inputs to the derived ratio metrics.
type Counters struct {
	Views       float64
	Clicks      float64
	ViewContent float64
	Purchases   float64
	// CTR is the stored ctr, used when views are unknown.
	CTR float64
}

// Derived holds ratio metrics computed from Counters.
type Derived struct {
	CTR                float64 `json:"ctr"`
	PurchaseRate       float64 `json:"purchase_rate"`
	ClicksPer1000Views float64 `json:"clicks_per_1000_views"`
}

// CountersFrom reads the counters of v. Negative and non-finite values are
// clamped to zero.
func CountersFrom(v *model.Video) Counters {
	return Counters{
		Views:       clamp(v.Float("views")),
		Clicks:      clamp(v.Float("clicks")),
		ViewContent: clamp(v.Float("view_content")),
		Purchases:   clamp(v.Float("purchase")),
		CTR:         clamp(v.Float("ctr")),
	}
}

// Derive computes ctr, purchase rate and clicks per 1000 views.
func Derive(c Counters) Derived {
	c = Counters{
		Views:       clamp(c.Views),
		Clicks:      clamp(c.Clicks),
		ViewContent: clamp(c.ViewContent),
		Purchases:   clamp(c.Purchases),
		CTR:         clamp(c.CTR),
	}

	var d Derived
	if c.Views > 0 {
		d.CTR = c.Clicks / c.Views
		d.ClicksPer1000Views = 1000 * c.Clicks / c.Views
	} else {
		d.CTR = c.CTR
	}

	switch {
	case c.ViewContent > 0:
		d.PurchaseRate = c.Purchases / c.ViewContent
	case c.Views > 0:
		d.PurchaseRate = c.Purchases / c.Views
	}
	return d
}

func clamp(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return x
}
