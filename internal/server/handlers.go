package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/types"
)

// TriggerRequest is the body of POST /runs
type TriggerRequest struct {
	TeamID     string `json:"teamId" validate:"required,uuid"`
	UserID     string `json:"userId" validate:"required,uuid"`
	AgentRunID string `json:"agentRunId" validate:"required,uuid"`
}

// TriggerResponse is returned once the run is accepted
type TriggerResponse struct {
	AgentRunID string `json:"agentRunId"`
	Status     string `json:"status"`
}

// StatusResponse represents the response for GET /runs/{id}
type StatusResponse struct {
	AgentRunID string            `json:"agentRunId"`
	Status     string            `json:"status"`
	Phase      string            `json:"phase,omitempty"`
	Metrics    *types.RunMetrics `json:"metrics,omitempty"`
	Error      *string           `json:"error,omitempty"`
	InProgress bool              `json:"inProgress"`
	// Terminal is true once the run succeeded or failed.
	Terminal bool `json:"terminal"`
}

// handleTrigger validates the request and starts the run in the background.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		err := &ErrRateLimited{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		verr := validationError(err)
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	in := pipeline.Input{
		TeamID:     uuid.MustParse(req.TeamID),
		UserID:     uuid.MustParse(req.UserID),
		AgentRunID: uuid.MustParse(req.AgentRunID),
	}

	if err := s.start(in); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, TriggerResponse{
		AgentRunID: in.AgentRunID.String(),
		Status:     types.RunStatusQueued,
	})
}

// start launches the run unless the same agent run is already executing here.
func (s *Server) start(in pipeline.Input) error {
	s.mu.Lock()
	if s.inFlight[in.AgentRunID] {
		s.mu.Unlock()
		return &ErrRunInFlight{RunID: in.AgentRunID.String()}
	}
	s.inFlight[in.AgentRunID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	log := s.log.With(zap.String(logger.FieldRunID, in.AgentRunID.String()))
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, in.AgentRunID)
			s.mu.Unlock()
		}()

		res, err := s.runner.Run(s.runCtx, in)
		if err != nil {
			log.Error("server: run invocation failed", zap.Error(err))
			return
		}
		log.Info("server: run finished", zap.String("status", res.Status), zap.String(logger.FieldPhase, res.Phase))
	}()

	log.Info("server: run accepted")
	return nil
}

// handleStatus returns the stored status of an agent run
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}
	if s.reader == nil {
		s.errorResponse(w, http.StatusNotImplemented, "Run lookup is not configured")
		return
	}

	run, err := s.reader.GetAgentRun(r.Context(), runID)
	if err != nil {
		s.log.Warn("server: failed to get agent run", zap.Error(err))
		s.errorResponse(w, http.StatusBadGateway, "Failed to load run")
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	s.mu.Lock()
	inProgress := s.inFlight[runID]
	s.mu.Unlock()

	resp := StatusResponse{
		AgentRunID: run.ID.String(),
		Status:     run.Status,
		Error:      run.Error,
		InProgress: inProgress,
		Terminal:   types.IsTerminalStatus(run.Status),
	}
	if run.Output != nil {
		resp.Phase = run.Output.Phase
		metrics := run.Output.RunMetrics
		resp.Metrics = &metrics
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
