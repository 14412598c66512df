package model

import (
	"slices"
	"strings"
)

// FieldType is the storage type of a metric field.
type FieldType string

const (
	FieldInt   FieldType = "int"
	FieldFloat FieldType = "float"
	FieldText  FieldType = "text"
	FieldEnum  FieldType = "enum"
	// FieldJSON is only used for the extra-metrics blob column.
	FieldJSON FieldType = "json"
)

// ExtraColumn holds accepted fields that have no dedicated column.
const ExtraColumn = "extra_metrics"

// MetricField describes one canonical metric field.
type MetricField struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	EnumValues []string  `json:"enum_values,omitempty"`
	// Column marks fields persisted in a dedicated videos column. All other
	// accepted fields are merged into the extra_metrics blob.
	Column bool `json:"column"`
}

// Numeric reports whether the field holds a number.
func (f *MetricField) Numeric() bool {
	return f.Type == FieldInt || f.Type == FieldFloat
}

// Allows reports whether v is a member of the enum domain.
func (f *MetricField) Allows(v string) bool {
	return slices.Contains(f.EnumValues, v)
}

// MetricRegistry is an immutable index of metric fields and their input aliases.
type MetricRegistry struct {
	Fields  []MetricField
	byKey   map[string]*MetricField
	aliases map[string]string
	columns []*MetricField
}

// NewMetricRegistry creates a MetricRegistry with indexed lookups. Aliases
// map an accepted raw key to a canonical field name; aliases pointing at an
// unknown field are ignored.
func NewMetricRegistry(fields []MetricField, aliases map[string]string) *MetricRegistry {
	r := &MetricRegistry{
		Fields:  fields,
		byKey:   make(map[string]*MetricField, len(fields)),
		aliases: make(map[string]string, len(aliases)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Name] = f
		if f.Column {
			r.columns = append(r.columns, f)
		}
	}
	for alias, canonical := range aliases {
		if _, ok := r.byKey[canonical]; ok {
			r.aliases[normalizeKey(alias)] = canonical
		}
	}
	return r
}

// Canonical returns the canonical name for a raw key. Keys that are neither
// an alias nor a known field are returned normalized but otherwise unchanged.
func (r *MetricRegistry) Canonical(key string) string {
	k := normalizeKey(key)
	if c, ok := r.aliases[k]; ok {
		return c
	}
	return k
}

// IsAlias reports whether key is an alias rather than a canonical name.
func (r *MetricRegistry) IsAlias(key string) bool {
	_, ok := r.aliases[normalizeKey(key)]
	return ok
}

// Lookup resolves aliases and returns the field, or nil if unknown.
func (r *MetricRegistry) Lookup(key string) *MetricField {
	return r.byKey[r.Canonical(key)]
}

// ByName returns the field with the exact canonical name, or nil.
func (r *MetricRegistry) ByName(name string) *MetricField {
	return r.byKey[name]
}

// Columns returns the fields stored in dedicated columns, in registry order.
func (r *MetricRegistry) Columns() []*MetricField {
	return r.columns
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

var defaultFields = []MetricField{
	{Name: "views", Type: FieldInt, Column: true},
	{Name: "impressions", Type: FieldInt, Column: true},
	{Name: "clicks", Type: FieldInt, Column: true},
	{Name: "ctr", Type: FieldFloat, Column: true},
	{Name: "view_content", Type: FieldInt, Column: true},
	{Name: "add_to_cart", Type: FieldInt, Column: true},
	{Name: "purchase", Type: FieldInt, Column: true},
	{Name: "lead_form", Type: FieldInt, Column: true},
	{Name: "spend", Type: FieldFloat, Column: true},
	{Name: "revenue", Type: FieldFloat, Column: true},
	{Name: "watch_time", Type: FieldFloat, Column: true},
	{Name: "avg_watch_pct", Type: FieldFloat, Column: true},
	{Name: "likes", Type: FieldInt, Column: true},
	{Name: "comments", Type: FieldInt, Column: true},
	{Name: "shares", Type: FieldInt, Column: true},
	{Name: "video_type", Type: FieldEnum, Column: true, EnumValues: []string{"organic", "ad", "live", "ugc", "short"}},
	{Name: "status", Type: FieldEnum, Column: true, EnumValues: []string{"draft", "live", "paused", "archived"}},
	{Name: "hook", Type: FieldText, Column: true},
	{Name: "notes", Type: FieldText, Column: true},

	// Accepted but stored in extra_metrics.
	{Name: "reach", Type: FieldInt},
	{Name: "saves", Type: FieldInt},
	{Name: "follows", Type: FieldInt},
	{Name: "frequency", Type: FieldFloat},
	{Name: "cpm", Type: FieldFloat},
	{Name: "cpc", Type: FieldFloat},
	{Name: "roas", Type: FieldFloat},
	{Name: "hold_rate", Type: FieldFloat},
	{Name: "platform", Type: FieldEnum, EnumValues: []string{"tiktok", "instagram", "youtube", "facebook", "other"}},
	{Name: "campaign_name", Type: FieldText},
	{Name: "thumbnail_url", Type: FieldText},
}

var defaultAliases = map[string]string{
	"leads":              "lead_form",
	"lead":               "lead_form",
	"purchases":          "purchase",
	"video_views":        "views",
	"plays":              "views",
	"link_clicks":        "clicks",
	"click_through_rate": "ctr",
	"content_views":      "view_content",
	"atc":                "add_to_cart",
	"cost":               "spend",
	"amount_spent":       "spend",
	"watch_time_seconds": "watch_time",
	"type":               "video_type",
	"hold":               "hold_rate",
}

// DefaultRegistry is the metric field table used by the application.
var DefaultRegistry = NewMetricRegistry(defaultFields, defaultAliases)
