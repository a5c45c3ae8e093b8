package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/wolf/internal/mutect2"
	"github.com/me/wolf/internal/plan"
	"github.com/me/wolf/pkg/model"
)

// maxPlanBody bounds the size of a plan request body.
const maxPlanBody = 1 << 20

// handleCreatePlan builds a MuTect2 plan from the JSON request body and
// stores it. With ?dry_run=true the plan is returned without being stored.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBody))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Failed to read body: " + err.Error(),
		})
		return
	}

	var params mutect2.Params
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	// Zero in Params means unset; an explicit scatter_count must still be >= 1.
	var explicit struct {
		ScatterCount *int `json:"scatter_count"`
	}
	if err := json.Unmarshal(body, &explicit); err == nil && explicit.ScatterCount != nil {
		if err := mutect2.ValidateScatterCount(*explicit.ScatterCount); err != nil {
			status, apiErr := classifyError(err)
			respondError(w, reqID, status, apiErr)
			return
		}
	}
	params = s.applyDefaults(params)

	p, err := plan.Mutect2(s.logger, s.table, params)
	if err != nil {
		status, apiErr := classifyError(err)
		respondError(w, reqID, status, apiErr)
		return
	}

	if r.URL.Query().Get("dry_run") == "true" || s.store == nil {
		respondOK(w, reqID, p)
		return
	}
	if err := s.store.SavePlan(r.Context(), p); err != nil {
		s.logger.Error("save plan", "id", p.ID, "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code:    model.ErrInternal,
			Message: "failed to store plan",
		})
		return
	}
	s.logger.Info("plan stored", "id", p.ID, "pair", p.Pair, "nodes", len(p.Nodes))
	respondCreated(w, reqID, p)
}

// applyDefaults fills unset workflow arguments from the server configuration.
func (s *Server) applyDefaults(p mutect2.Params) mutect2.Params {
	d := s.config.Defaults
	if p.RefBuild == "" {
		p.RefBuild = d.RefBuild
	}
	if p.SequencingType == "" {
		p.SequencingType = d.SequencingType
	}
	if p.ScatterCount == 0 {
		p.ScatterCount = d.ScatterCount
	}
	return p
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Pair = q.Get("pair")
	opts.Clamp()

	plans, total, err := s.store.ListPlans(r.Context(), opts)
	if err != nil {
		s.logger.Error("list plans", "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code:    model.ErrInternal,
			Message: "failed to list plans",
		})
		return
	}
	if plans == nil {
		plans = []*model.PlanSummary{}
	}
	respondList(w, reqID, plans, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(plans) < total,
	})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	p, ok := s.lookupPlan(w, r, reqID)
	if !ok {
		return
	}
	respondOK(w, reqID, p)
}

func (s *Server) handleGetPlanDOT(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	p, ok := s.lookupPlan(w, r, reqID)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	if err := plan.WriteDOT(w, p); err != nil {
		s.logger.Error("write dot", "id", p.ID, "error", err)
	}
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeletePlan(r.Context(), id); err != nil {
		status, apiErr := classifyError(err)
		respondError(w, reqID, status, apiErr)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

func (s *Server) lookupPlan(w http.ResponseWriter, r *http.Request, reqID string) (*model.Plan, bool) {
	if !s.requireStore(w, reqID) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	p, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		s.logger.Error("get plan", "id", id, "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code:    model.ErrInternal,
			Message: "failed to load plan",
		})
		return nil, false
	}
	if p == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan", id))
		return nil, false
	}
	return p, true
}

func (s *Server) requireStore(w http.ResponseWriter, reqID string) bool {
	if s.store != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
		Code:    model.ErrConfiguration,
		Message: "plan store is disabled",
	})
	return false
}
