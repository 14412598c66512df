package experiment

import (
	"strings"

	"github.com/sells-group/hypolab/internal/model"
)

// Volume units with special counting rules.
const (
	UnitVideos   = "videos"
	UnitSessions = "sessions"
)

// unitAliases maps plural unit names onto registry fields.
var unitAliases = map[string]string{
	"purchases": "purchase",
	"leads":     "lead_form",
}

// VolumeSnapshot reports accumulated sample volume against a minimum.
type VolumeSnapshot struct {
	Unit         string  `json:"unit"`
	Minimum      float64 `json:"minimum"`
	Current      float64 `json:"current"`
	CountSamples int     `json:"countSamples"`
	MeetsMinimum bool    `json:"meetsMinimum"`
}

// ResolveUnit maps a requested unit onto a supported one. Unknown units
// fall back to videos.
func ResolveUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case UnitVideos, UnitSessions:
		return u
	}
	if field, ok := unitAliases[u]; ok {
		return field
	}
	if f := model.DefaultRegistry.Lookup(u); f != nil && f.Numeric() {
		return f.Name
	}
	return UnitVideos
}

// CurrentVolume measures videos in the given unit: a record count for
// videos, distinct identifiers for sessions, otherwise the sum of the
// mapped numeric field.
func CurrentVolume(videos []model.Video, unit string) float64 {
	switch u := ResolveUnit(unit); u {
	case UnitVideos:
		return float64(len(videos))
	case UnitSessions:
		seen := make(map[string]struct{}, len(videos))
		for i := range videos {
			if id := sessionIdentifier(&videos[i]); id != "" {
				seen[id] = struct{}{}
			}
		}
		if len(seen) == 0 {
			return float64(len(videos))
		}
		return float64(len(seen))
	default:
		var sum float64
		for i := range videos {
			sum += clamp(videos[i].Float(u))
		}
		return sum
	}
}

// sessionIdentifier returns the first non-empty of session, ad and live id.
func sessionIdentifier(v *model.Video) string {
	for _, id := range []string{v.SessionID, v.AdID, v.LiveID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// Snapshot builds a VolumeSnapshot for videos.
func Snapshot(videos []model.Video, unit string, minimum float64) VolumeSnapshot {
	current := CurrentVolume(videos, unit)
	return VolumeSnapshot{
		Unit:         ResolveUnit(unit),
		Minimum:      minimum,
		Current:      current,
		CountSamples: len(videos),
		MeetsMinimum: current >= minimum,
	}
}
