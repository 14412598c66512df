package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Video is one canonical per-video metrics row.
type Video struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Name      string         `json:"video_name"`
	SessionID string         `json:"session_id,omitempty"`
	AdID      string         `json:"ad_id,omitempty"`
	LiveID    string         `json:"live_id,omitempty"`
	Metrics   map[string]any `json:"metrics"`
	Extra     map[string]any `json:"extra_metrics"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Assignment is one column = value pair written by an update.
type Assignment struct {
	Column string
	Value  any
}

// Float returns a metric as float64; missing or non-numeric values are 0.
func (v *Video) Float(name string) float64 {
	if v == nil {
		return 0
	}
	return ToFloat(v.Metrics[name])
}

// Text returns a metric as a string; missing values are "".
func (v *Video) Text(name string) string {
	if v == nil {
		return ""
	}
	switch s := v.Metrics[name].(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}

// VideoType returns the normalized video_type metric.
func (v *Video) VideoType() string {
	return strings.ToLower(strings.TrimSpace(v.Text("video_type")))
}

// ToFloat converts a loosely typed numeric value to float64. Non-numeric
// and non-finite inputs yield 0.
func ToFloat(val any) float64 {
	var f float64
	switch n := val.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
