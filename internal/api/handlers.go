package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/experiment"
	"github.com/sells-group/hypolab/internal/fetcher"
	"github.com/sells-group/hypolab/internal/reconcile"
	"github.com/sells-group/hypolab/internal/store"
)

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrMalformedRequest),
		errors.Is(err, experiment.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, "storage failure")
		return
	}
	writeError(w, status, err.Error())
}

func ownerFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+OwnerHeader+" header")
		return
	}

	req, err := reconcile.DecodeRequest(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.reconcile.Run(r.Context(), owner, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// compareRequest overrides the server's comparison defaults field by field.
type compareRequest struct {
	VideoAID      string   `json:"videoAId" validate:"required"`
	VideoBID      string   `json:"videoBId" validate:"required"`
	PrimaryMetric *string  `json:"primaryMetric" validate:"omitempty,min=1"`
	Alpha         *float64 `json:"alpha" validate:"omitempty,gt=0,lt=1"`
	MDE           *float64 `json:"mde" validate:"omitempty,gte=0"`
	MinExposure   *float64 `json:"minExposure" validate:"omitempty,gte=0"`
	Method        *string  `json:"method" validate:"omitempty,oneof=auto frequentist bayesian sequential"`
}

func (c *compareRequest) config(base experiment.Config) experiment.Config {
	cfg := base
	if c.PrimaryMetric != nil {
		cfg.PrimaryMetric = strings.TrimSpace(*c.PrimaryMetric)
	}
	if c.Alpha != nil {
		cfg.Alpha = *c.Alpha
	}
	if c.MDE != nil {
		cfg.MDE = *c.MDE
	}
	if c.MinExposure != nil {
		cfg.MinExposure = *c.MinExposure
	}
	if c.Method != nil {
		cfg.Method = experiment.Method(*c.Method)
	}
	return cfg
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+OwnerHeader+" header")
		return
	}

	req, err := fetcher.DecodeJSONObject[compareRequest](http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.experiments.Compare(r.Context(), owner, req.VideoAID, req.VideoBID, req.config(s.opts.Compare))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+OwnerHeader+" header")
		return
	}

	q := r.URL.Query()
	unit := q.Get("unit")
	if unit == "" {
		unit = s.opts.VolumeUnit
	}
	minimum := s.opts.VolumeMinimum
	if raw := q.Get("minimum"); raw != "" {
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minimum must be a number")
			return
		}
		minimum = m
	}

	snap, err := s.experiments.Volume(r.Context(), owner, unit, minimum)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
