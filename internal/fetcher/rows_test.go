package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsToUpdates(t *testing.T) {
	header := []string{"Record_ID", "session_id", "name", "Views", "leads", ""}
	rows := [][]string{
		{"v1", "S-1", "Hook A", "120", "3", "ignored"},
		{"", "", "Hook B", "", "", ""},
		{"", "S-3", "", "40"},
		{"v4", "", "", "1", "2", "x", "overflow"},
	}

	updates := RowsToUpdates(header, rows)
	require.Len(t, updates, 4)

	assert.Equal(t, "v1", updates[0].VideoID)
	assert.Equal(t, "S-1", updates[0].SessionID)
	assert.Equal(t, "Hook A", updates[0].VideoName)
	assert.True(t, updates[0].FieldsOK)
	assert.Equal(t, map[string]any{"views": "120", "leads": "3"}, updates[0].Fields)

	assert.Equal(t, "Hook B", updates[1].VideoName)
	assert.True(t, updates[1].FieldsOK)
	assert.Empty(t, updates[1].Fields)

	assert.Equal(t, "S-3", updates[2].SessionID)
	assert.Equal(t, map[string]any{"views": "40"}, updates[2].Fields)

	assert.Equal(t, "v4", updates[3].VideoID)
	assert.Equal(t, map[string]any{"views": "1", "leads": "2"}, updates[3].Fields)
}

func TestRowsToUpdates_NoRows(t *testing.T) {
	assert.Empty(t, RowsToUpdates([]string{"video_id"}, nil))
}
