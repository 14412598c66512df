package store

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hypolab/internal/model"
)

// baseColumns are the fixed columns of the videos table. Every other
// column is a metric column added by EnsureColumns.
var baseColumns = map[string]bool{
	"id":              true,
	"owner_id":        true,
	"video_name":      true,
	"session_id":      true,
	"ad_id":           true,
	"live_id":         true,
	model.ExtraColumn: true,
	"created_at":      true,
	"updated_at":      true,
}

// decodeVideo maps a column-name keyed row onto a Video.
func decodeVideo(row map[string]any) (model.Video, error) {
	v := model.Video{
		ID:        asString(row["id"]),
		OwnerID:   asString(row["owner_id"]),
		Name:      asString(row["video_name"]),
		SessionID: asString(row["session_id"]),
		AdID:      asString(row["ad_id"]),
		LiveID:    asString(row["live_id"]),
		CreatedAt: asTime(row["created_at"]),
		UpdatedAt: asTime(row["updated_at"]),
		Metrics:   make(map[string]any),
	}

	extra, err := decodeExtra(row[model.ExtraColumn])
	if err != nil {
		return v, eris.Wrapf(err, "store: decode extra_metrics for video %s", v.ID)
	}
	v.Extra = extra

	for col, val := range row {
		if baseColumns[col] || val == nil {
			continue
		}
		switch n := val.(type) {
		case int32:
			v.Metrics[col] = int64(n)
		case int:
			v.Metrics[col] = int64(n)
		case float32:
			v.Metrics[col] = float64(n)
		case []byte:
			v.Metrics[col] = string(n)
		default:
			v.Metrics[col] = n
		}
	}
	return v, nil
}

func decodeExtra(val any) (map[string]any, error) {
	out := make(map[string]any)
	var raw []byte
	switch b := val.(type) {
	case nil:
		return out, nil
	case map[string]any:
		for k, x := range b {
			out[k] = x
		}
		return out, nil
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		return nil, eris.Errorf("unexpected type %T", val)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

func asString(val any) string {
	switch s := val.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func asTime(val any) time.Time {
	switch t := val.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999 -0700 MST", "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// insertColumns returns the ordered column list and values for inserting v.
// Missing ids are filled with a new uuid and zero timestamps with now.
func insertColumns(v *model.Video) ([]string, []any, error) {
	if v.OwnerID == "" {
		return nil, nil, eris.New("store: owner id is required")
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}
	if v.Extra == nil {
		v.Extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(v.Extra)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal extra_metrics")
	}

	cols := []string{"id", "owner_id", "video_name", "session_id", "ad_id", "live_id", model.ExtraColumn, "created_at", "updated_at"}
	vals := []any{v.ID, v.OwnerID, v.Name, v.SessionID, v.AdID, v.LiveID, string(extraJSON), v.CreatedAt, v.UpdatedAt}

	keys := make([]string, 0, len(v.Metrics))
	for k := range v.Metrics {
		if !baseColumns[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, k)
		vals = append(vals, v.Metrics[k])
	}
	return cols, vals, nil
}
