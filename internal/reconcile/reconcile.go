package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/fetcher"
	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/monitoring"
	"github.com/sells-group/hypolab/internal/store"
)

// ErrMalformedRequest marks request-level failures. No outcomes are
// produced for a malformed request.
var ErrMalformedRequest = eris.New("reconcile: malformed request")

// Request is one bulk-update call.
type Request struct {
	Updates []model.RawUpdate `json:"updates"`
	DryRun  bool              `json:"dryRun,omitempty"`
}

type requestEnvelope struct {
	Updates json.RawMessage `json:"updates"`
	DryRun  bool            `json:"dryRun"`
}

// DecodeRequest parses a bulk-update request body. Malformed JSON and a
// missing or non-array "updates" member wrap ErrMalformedRequest.
func DecodeRequest(r io.Reader) (*Request, error) {
	env, err := fetcher.DecodeJSONObject[requestEnvelope](r)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedRequest, "invalid JSON body: %v", err)
	}
	raw := bytes.TrimSpace(env.Updates)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, eris.Wrap(ErrMalformedRequest, "missing updates array")
	}
	if raw[0] != '[' {
		return nil, eris.Wrap(ErrMalformedRequest, "updates must be an array")
	}

	req := &Request{DryRun: env.DryRun}
	if err := json.Unmarshal(raw, &req.Updates); err != nil {
		return nil, eris.Wrapf(ErrMalformedRequest, "invalid updates array: %v", err)
	}
	return req, nil
}

// Summary holds the post-run counts.
type Summary struct {
	Received int `json:"received"`
	Valid    int `json:"valid"`
	Matched  int `json:"matched"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Response is the result of a bulk-update call. Results hold one outcome
// per input row in input order.
type Response struct {
	OK       bool      `json:"ok"`
	RunID    string    `json:"runId"`
	DryRun   bool      `json:"dryRun"`
	Summary  Summary   `json:"summary"`
	Warnings []string  `json:"warnings"`
	Results  []Outcome `json:"results"`
}

// Service runs bulk reconciliation against a store.
type Service struct {
	store    store.Store
	norm     *Normalizer
	applier  *Applier
	maxBatch int
}

// NewService creates a Service. A maxBatch of zero or less disables the
// batch size limit.
func NewService(st store.Store, reg *model.MetricRegistry, maxBatch int) *Service {
	return &Service{
		store:    st,
		norm:     NewNormalizer(reg),
		applier:  NewApplier(st, reg),
		maxBatch: maxBatch,
	}
}

// Run reconciles req for one owner. Row-scoped problems are reported in the
// response; only malformed requests and storage failures return an error.
func (s *Service) Run(ctx context.Context, ownerID string, req *Request) (*Response, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, eris.Wrap(ErrMalformedRequest, "owner id is required")
	}
	if req == nil {
		return nil, eris.Wrap(ErrMalformedRequest, "missing updates array")
	}
	if s.maxBatch > 0 && len(req.Updates) > s.maxBatch {
		return nil, eris.Wrapf(ErrMalformedRequest, "batch of %d updates exceeds limit of %d", len(req.Updates), s.maxBatch)
	}

	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "reconcile"),
		zap.String("run_id", runID),
		zap.String("owner_id", ownerID),
	)

	videos, err := s.store.ListVideos(ctx, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load videos")
	}

	plan := PlanBatch(req.Updates, s.norm, BuildIndex(videos))
	matched := plan.Count(StatusWillUpdate)

	updated := 0
	if !req.DryRun && len(plan.Targets) > 0 {
		start := time.Now()
		applied, err := s.applier.Apply(ctx, ownerID, plan.Targets)
		monitoring.RecordApply(time.Since(start), err)
		if err != nil {
			return nil, err
		}
		for i := range plan.Outcomes {
			o := &plan.Outcomes[i]
			if o.Status == StatusWillUpdate && applied[o.MatchedVideoID] {
				o.Status = StatusUpdated
				updated++
			}
		}
	}

	for _, o := range plan.Outcomes {
		monitoring.RecordOutcome(string(o.Status))
	}

	resp := &Response{
		OK:     true,
		RunID:  runID,
		DryRun: req.DryRun,
		Summary: Summary{
			Received: len(req.Updates),
			Valid:    len(req.Updates) - plan.Count(StatusInvalid),
			Matched:  matched,
			Updated:  updated,
			Skipped:  len(req.Updates) - matched,
		},
		Warnings: plan.Warnings,
		Results:  plan.Outcomes,
	}

	log.Info("reconcile: run complete",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("received", resp.Summary.Received),
		zap.Int("valid", resp.Summary.Valid),
		zap.Int("matched", resp.Summary.Matched),
		zap.Int("updated", resp.Summary.Updated),
		zap.Int("warnings", len(plan.Warnings)),
	)
	return resp, nil
}
