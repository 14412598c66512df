package reconcile

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/hypolab/internal/model"
)

// Identifier names the key that resolved an update to a video.
type Identifier string

const (
	ByVideoID   Identifier = "video_id"
	BySessionID Identifier = "session_id"
	ByVideoName Identifier = "video_name"
)

// Index holds immutable lookups over one owner's videos. It is built once
// per reconciliation call and never shared across calls.
type Index struct {
	byID      map[string]*model.Video
	bySession map[string]*model.Video
	byName    map[string]*model.Video
}

// BuildIndex indexes videos by raw id, normalized session id and
// normalized name. When several videos share a key the first one wins.
func BuildIndex(videos []model.Video) *Index {
	ix := &Index{
		byID:      make(map[string]*model.Video, len(videos)),
		bySession: make(map[string]*model.Video, len(videos)),
		byName:    make(map[string]*model.Video, len(videos)),
	}
	for i := range videos {
		v := &videos[i]
		addFirst(ix.byID, v.ID, v)
		addFirst(ix.bySession, identityKey(v.SessionID), v)
		addFirst(ix.byName, identityKey(v.Name), v)
	}
	return ix
}

func addFirst(m map[string]*model.Video, key string, v *model.Video) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

func identityKey(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Resolve finds the target video for u. Precedence is video_id, then
// session_id, then video_name; a later key is consulted only when every
// earlier key is absent or unmatched.
func (ix *Index) Resolve(u model.RawUpdate) (*model.Video, Identifier) {
	if id := strings.TrimSpace(u.VideoID); id != "" {
		if v, ok := ix.byID[id]; ok {
			return v, ByVideoID
		}
	}
	if key := identityKey(u.SessionID); key != "" {
		if v, ok := ix.bySession[key]; ok {
			return v, BySessionID
		}
	}
	if key := identityKey(u.VideoName); key != "" {
		if v, ok := ix.byName[key]; ok {
			return v, ByVideoName
		}
	}

	zap.L().Debug("reconcile: unresolved update",
		zap.String("video_id", u.VideoID),
		zap.String("session_id", u.SessionID),
		zap.String("video_name", u.VideoName),
	)
	return nil, ""
}
