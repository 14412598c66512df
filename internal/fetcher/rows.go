package fetcher

import (
	"strings"

	"github.com/sells-group/hypolab/internal/model"
)

// RowsToUpdates maps tabular rows onto bulk updates. Identity columns
// (video_id, session_id, video_name and their aliases) populate the top
// level; every other non-empty cell becomes a raw field keyed by its header.
// Cells beyond the header width are ignored.
func RowsToUpdates(header []string, rows [][]string) []model.RawUpdate {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.ToLower(strings.TrimSpace(h))
	}

	updates := make([]model.RawUpdate, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(keys)+1)
		fields := make(map[string]any)
		for i, cell := range row {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if model.IdentityKey(keys[i]) != "" {
				if _, dup := obj[keys[i]]; !dup {
					obj[keys[i]] = cell
				}
				continue
			}
			fields[keys[i]] = cell
		}
		obj["fields"] = fields
		updates = append(updates, model.NewRawUpdate(obj))
	}
	return updates
}
