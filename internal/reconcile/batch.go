package reconcile

import (
	"fmt"
	"maps"

	"github.com/sells-group/hypolab/internal/model"
)

// Status is the outcome of one input row.
type Status string

const (
	StatusInvalid    Status = "invalid"
	StatusNotFound   Status = "not_found"
	StatusWillUpdate Status = "will_update"
	StatusUpdated    Status = "updated"
	StatusSkipped    Status = "skipped"
)

// Outcome reports what happened to one input row.
type Outcome struct {
	InputIndex     int        `json:"inputIndex"`
	Status         Status     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	IdentifierUsed Identifier `json:"identifierUsed,omitempty"`
	MatchedVideoID string     `json:"matchedVideoId,omitempty"`
}

// Target is the single merged update pending for one video.
type Target struct {
	Video *model.Video
	// InputIndex is the input row whose outcome currently owns the target.
	InputIndex int
	Canonical  map[string]any
	Extra      map[string]any
}

// Plan is the deduplicated result of a batch before it is applied.
type Plan struct {
	Outcomes []Outcome
	// Targets are ordered by first resolution.
	Targets  []*Target
	Warnings []string
}

// PlanBatch normalizes and resolves every update and merges updates that
// resolve to the same video. A later update wins per key, and the earlier
// outcome is relabelled skipped with reason duplicate_overridden.
func PlanBatch(updates []model.RawUpdate, norm *Normalizer, ix *Index) *Plan {
	plan := &Plan{
		Outcomes: make([]Outcome, len(updates)),
		Warnings: []string{},
	}
	pending := make(map[string]*Target)

	for i, u := range updates {
		out := Outcome{InputIndex: i}

		n, reason := norm.Normalize(u)
		if reason != "" {
			out.Status = StatusInvalid
			out.Reason = reason
			plan.Outcomes[i] = out
			continue
		}

		video, by := ix.Resolve(u)
		if video == nil {
			out.Status = StatusNotFound
			out.Reason = ReasonNotFound
			plan.Outcomes[i] = out
			continue
		}
		out.Status = StatusWillUpdate
		out.IdentifierUsed = by
		out.MatchedVideoID = video.ID

		if t, ok := pending[video.ID]; ok {
			prev := &plan.Outcomes[t.InputIndex]
			prev.Status = StatusSkipped
			prev.Reason = ReasonDuplicateOverridden
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("video %s: input %d overridden by input %d", video.ID, t.InputIndex, i))

			maps.Copy(t.Canonical, n.Canonical)
			maps.Copy(t.Extra, n.Extra)
			t.InputIndex = i
		} else {
			t := &Target{
				Video:      video,
				InputIndex: i,
				Canonical:  maps.Clone(n.Canonical),
				Extra:      maps.Clone(n.Extra),
			}
			pending[video.ID] = t
			plan.Targets = append(plan.Targets, t)
		}
		plan.Outcomes[i] = out
	}
	return plan
}

// Count returns the number of outcomes with status s.
func (p *Plan) Count(s Status) int {
	n := 0
	for _, o := range p.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
