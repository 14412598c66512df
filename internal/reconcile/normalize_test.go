package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fieldsUpdate(fields map[string]any) model.RawUpdate {
	return model.RawUpdate{Fields: fields, FieldsOK: true}
}

func TestNormalize_CoercesNumericStrings(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	got, reason := n.Normalize(fieldsUpdate(map[string]any{"views": "120", "ctr": "0.05"}))
	require.Empty(t, reason)
	assert.Equal(t, map[string]any{"views": int64(120), "ctr": 0.05}, got.Canonical)
	assert.Empty(t, got.Extra)
}

func TestNormalize_RejectsUnknownInFull(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	fields := map[string]any{
		"views": 1, "impressions": 2, "clicks": 3, "ctr": 0.1, "view_content": 4,
		"add_to_cart": 5, "purchase": 6, "lead_form": 7, "spend": 8.5, "revenue": 9.5,
		"mystery_metric": 10,
	}
	got, reason := n.Normalize(fieldsUpdate(fields))
	assert.Equal(t, "unknown_fields:mystery_metric", reason)
	assert.Nil(t, got.Canonical)
	assert.Nil(t, got.Extra)
}

func TestNormalize_UnknownKeysListed(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	_, reason := n.Normalize(fieldsUpdate(map[string]any{"zeta": 1, "alpha": 2, "views": 3}))
	assert.Equal(t, "unknown_fields:alpha,zeta", reason)
}

func TestNormalize_IdentityKeyInsideFieldsIsUnknown(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	_, reason := n.Normalize(fieldsUpdate(map[string]any{"video_id": "v1", "views": 3}))
	assert.Equal(t, "unknown_fields:video_id", reason)
}

func TestNormalize_Aliases(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	t.Run("alias resolves", func(t *testing.T) {
		got, reason := n.Normalize(fieldsUpdate(map[string]any{"leads": "4", "purchases": 2}))
		require.Empty(t, reason)
		assert.Equal(t, map[string]any{"lead_form": int64(4), "purchase": int64(2)}, got.Canonical)
	})

	t.Run("canonical wins over alias", func(t *testing.T) {
		got, reason := n.Normalize(fieldsUpdate(map[string]any{"lead_form": 9, "leads": 4}))
		require.Empty(t, reason)
		assert.Equal(t, map[string]any{"lead_form": int64(9)}, got.Canonical)
	})

	t.Run("case insensitive keys", func(t *testing.T) {
		got, reason := n.Normalize(fieldsUpdate(map[string]any{" Views ": 12}))
		require.Empty(t, reason)
		assert.Equal(t, map[string]any{"views": int64(12)}, got.Canonical)
	})
}

func TestNormalize_Rejections(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	tests := []struct {
		name   string
		update model.RawUpdate
		reason string
	}{
		{"fields absent", model.RawUpdate{VideoID: "v1"}, "missing_fields"},
		{"empty fields", fieldsUpdate(map[string]any{}), "empty_fields"},
		{"nan string", fieldsUpdate(map[string]any{"views": "NaN"}), "invalid_number:views"},
		{"garbage int", fieldsUpdate(map[string]any{"clicks": "lots"}), "invalid_number:clicks"},
		{"garbage float", fieldsUpdate(map[string]any{"ctr": "5%"}), "invalid_number:ctr"},
		{"empty string", fieldsUpdate(map[string]any{"spend": ""}), "invalid_number:spend"},
		{"bool", fieldsUpdate(map[string]any{"views": true}), "invalid_number:views"},
		{"null number", fieldsUpdate(map[string]any{"views": nil}), "invalid_number:views"},
		{"infinite", fieldsUpdate(map[string]any{"ctr": "Inf"}), "invalid_number:ctr"},
		{"bad enum", fieldsUpdate(map[string]any{"video_type": "hologram"}), "invalid_enum:video_type"},
		{"one bad among good", fieldsUpdate(map[string]any{"views": 10, "clicks": "x"}), "invalid_number:clicks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := n.Normalize(tt.update)
			assert.Equal(t, tt.reason, reason)
			assert.Nil(t, got.Canonical)
		})
	}
}

func TestNormalize_Coercion(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	got, reason := n.Normalize(fieldsUpdate(map[string]any{
		"views":      json.Number("120.9"),
		"clicks":     -3.7,
		"spend":      json.Number("12.50"),
		"video_type": "  ORGANIC ",
		"hook":       json.Number("42"),
		"notes":      nil,
		"reach":      "800",
		"platform":   "TikTok",
		"cpm":        4,
	}))
	require.Empty(t, reason)

	assert.Equal(t, map[string]any{
		"views":      int64(120),
		"clicks":     int64(-3),
		"spend":      12.5,
		"video_type": "organic",
		"hook":       "42",
		"notes":      "",
	}, got.Canonical)
	assert.Equal(t, map[string]any{
		"reach":    int64(800),
		"platform": "tiktok",
		"cpm":      4.0,
	}, got.Extra)
}

func TestNormalize_ExtraOnly(t *testing.T) {
	n := NewNormalizer(model.DefaultRegistry)

	got, reason := n.Normalize(fieldsUpdate(map[string]any{"saves": 3}))
	require.Empty(t, reason)
	assert.Empty(t, got.Canonical)
	assert.Equal(t, map[string]any{"saves": int64(3)}, got.Extra)
}
