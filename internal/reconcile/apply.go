package reconcile

import (
	"context"
	"encoding/json"
	"maps"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/store"
)

// Applier writes a plan to the row store in one transaction.
type Applier struct {
	store store.Store
	reg   *model.MetricRegistry
}

// NewApplier creates an Applier.
func NewApplier(st store.Store, reg *model.MetricRegistry) *Applier {
	return &Applier{store: st, reg: reg}
}

// Apply ensures every registry column exists, then updates each target
// scoped by video id and owner. Any failure rolls back the whole batch and
// is returned. It returns the ids of the videos that were written.
func (a *Applier) Apply(ctx context.Context, ownerID string, targets []*Target) (map[string]bool, error) {
	if err := a.store.EnsureColumns(ctx, a.reg.Columns()); err != nil {
		return nil, eris.Wrap(err, "reconcile: ensure columns")
	}

	applied := make(map[string]bool, len(targets))
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		for _, t := range targets {
			set, err := Assignments(t)
			if err != nil {
				return err
			}
			if len(set) == 0 {
				continue
			}

			n, err := tx.UpdateVideo(ctx, ownerID, t.Video.ID, set)
			if err != nil {
				return eris.Wrapf(err, "reconcile: update video %s", t.Video.ID)
			}
			if n == 0 {
				return eris.Errorf("reconcile: video %s no longer exists for owner", t.Video.ID)
			}
			applied[t.Video.ID] = true
		}
		return nil
	})
	if err != nil {
		zap.L().Error("reconcile: apply rolled back",
			zap.String("owner_id", ownerID),
			zap.Int("targets", len(targets)),
			zap.Error(err),
		)
		return nil, err
	}
	return applied, nil
}

// Assignments builds the column assignments for one target, ordered by
// column name. Extra fields are merged over the video's existing blob.
func Assignments(t *Target) ([]model.Assignment, error) {
	set := make([]model.Assignment, 0, len(t.Canonical)+1)
	for col, val := range t.Canonical {
		set = append(set, model.Assignment{Column: col, Value: val})
	}

	if len(t.Extra) > 0 {
		merged := make(map[string]any, len(t.Video.Extra)+len(t.Extra))
		maps.Copy(merged, t.Video.Extra)
		maps.Copy(merged, t.Extra)
		blob, err := json.Marshal(merged)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: marshal extra metrics for video %s", t.Video.ID)
		}
		set = append(set, model.Assignment{Column: model.ExtraColumn, Value: string(blob)})
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Column < set[j].Column })
	return set, nil
}
