package experiment

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/monitoring"
	"github.com/sells-group/hypolab/internal/store"
)

// Service loads videos from the store and runs comparisons and volume
// snapshots over them.
type Service struct {
	store  store.Store
	engine *Engine
}

// NewService creates a Service.
func NewService(st store.Store, engine *Engine) *Service {
	return &Service{store: st, engine: engine}
}

// Compare loads both videos for the owner and compares B against A.
// A missing video returns an error wrapping store.ErrNotFound.
func (s *Service) Compare(ctx context.Context, ownerID, videoAID, videoBID string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if videoAID == "" || videoBID == "" {
		return nil, eris.Wrap(ErrInvalidConfig, "both video ids are required")
	}

	var a, b *model.Video
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.store.GetVideo(gctx, ownerID, videoAID)
		if err != nil {
			return eris.Wrap(err, "experiment: load video A")
		}
		a = v
		return nil
	})
	g.Go(func() error {
		v, err := s.store.GetVideo(gctx, ownerID, videoBID)
		if err != nil {
			return eris.Wrap(err, "experiment: load video B")
		}
		b = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := s.engine.Compare(a, b, cfg)
	if err != nil {
		return nil, err
	}
	monitoring.RecordComparison(res.Metric, res.Decision)

	zap.L().Info("experiment: comparison complete",
		zap.String("owner_id", ownerID),
		zap.String("video_a", videoAID),
		zap.String("video_b", videoBID),
		zap.String("metric", res.Metric),
		zap.String("decision", res.Decision),
		zap.Float64("p_value", res.Frequentist.PValue),
		zap.Float64("p_b_gt_a", res.Bayesian.PBGreaterA),
	)
	return res, nil
}

// Volume returns the owner's volume snapshot in the given unit.
func (s *Service) Volume(ctx context.Context, ownerID, unit string, minimum float64) (*VolumeSnapshot, error) {
	if minimum < 0 {
		return nil, eris.Wrapf(ErrInvalidConfig, "minimum must be >= 0, got %v", minimum)
	}
	videos, err := s.store.ListVideos(ctx, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "experiment: list videos")
	}
	snap := Snapshot(videos, unit, minimum)
	return &snap, nil
}
