// Package reconcile validates, resolves, deduplicates and applies bulk
// video metric updates.
package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/hypolab/internal/model"
)

// Row-scoped rejection reasons.
const (
	ReasonMissingFields       = "missing_fields"
	ReasonUnknownFields       = "unknown_fields"
	ReasonInvalidNumber       = "invalid_number"
	ReasonInvalidEnum         = "invalid_enum"
	ReasonEmptyFields         = "empty_fields"
	ReasonNotFound            = "not_found"
	ReasonDuplicateOverridden = "duplicate_overridden"
)

// Normalized is an update whose fields passed validation and coercion.
type Normalized struct {
	// Canonical fields have a dedicated videos column.
	Canonical map[string]any
	// Extra fields are merged into the extra_metrics blob.
	Extra map[string]any
}

// Normalizer validates raw update fields against a metric registry.
type Normalizer struct {
	reg *model.MetricRegistry
}

// NewNormalizer creates a Normalizer over reg.
func NewNormalizer(reg *model.MetricRegistry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Normalize resolves aliases and coerces every field of u. It returns a
// non-empty reason when the record is rejected; a rejected record carries
// no fields at all.
func (n *Normalizer) Normalize(u model.RawUpdate) (Normalized, string) {
	if !u.FieldsOK {
		return Normalized{}, ReasonMissingFields
	}

	keys := make([]string, 0, len(u.Fields))
	for k := range u.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Canonical names present verbatim take precedence over their aliases.
	resolved := make(map[string]any, len(keys))
	var unknown []string
	for _, k := range keys {
		if n.reg.IsAlias(k) {
			continue
		}
		f := n.reg.Lookup(k)
		if f == nil {
			unknown = append(unknown, k)
			continue
		}
		resolved[f.Name] = u.Fields[k]
	}
	for _, k := range keys {
		if !n.reg.IsAlias(k) {
			continue
		}
		name := n.reg.Canonical(k)
		if _, taken := resolved[name]; taken {
			continue
		}
		resolved[name] = u.Fields[k]
	}
	if len(unknown) > 0 {
		return Normalized{}, ReasonUnknownFields + ":" + strings.Join(unknown, ",")
	}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	out := Normalized{Canonical: map[string]any{}, Extra: map[string]any{}}
	for _, name := range names {
		f := n.reg.ByName(name)
		val, reason := coerce(f, resolved[name])
		if reason != "" {
			return Normalized{}, reason
		}
		if f.Column {
			out.Canonical[name] = val
		} else {
			out.Extra[name] = val
		}
	}
	if len(out.Canonical) == 0 && len(out.Extra) == 0 {
		return Normalized{}, ReasonEmptyFields
	}
	return out, ""
}

func coerce(f *model.MetricField, raw any) (any, string) {
	switch f.Type {
	case model.FieldInt:
		x, ok := parseNumber(raw)
		if !ok || math.Abs(x) >= math.MaxInt64 {
			return nil, ReasonInvalidNumber + ":" + f.Name
		}
		return int64(math.Trunc(x)), ""
	case model.FieldFloat:
		x, ok := parseNumber(raw)
		if !ok {
			return nil, ReasonInvalidNumber + ":" + f.Name
		}
		return x, ""
	case model.FieldEnum:
		s := strings.ToLower(strings.TrimSpace(toText(raw)))
		if !f.Allows(s) {
			return nil, ReasonInvalidEnum + ":" + f.Name
		}
		return s, ""
	default:
		return toText(raw), ""
	}
}

// parseNumber accepts numbers and numeric strings. Empty strings, booleans
// and non-finite values are not numbers.
func parseNumber(raw any) (float64, bool) {
	var (
		x   float64
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		x, err = strconv.ParseFloat(v.String(), 64)
	case string:
		x, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	case float64:
		x = v
	case float32:
		x = float64(v)
	case int:
		x = float64(v)
	case int64:
		x = float64(v)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

func toText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
