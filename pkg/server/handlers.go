package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/engine"
)

// submitGoalRequest is the POST /api/goals body.
type submitGoalRequest struct {
	Text  string `json:"text"`
	Owner string `json:"owner,omitempty"`
}

// submitGoalResponse acknowledges an accepted goal.
type submitGoalResponse struct {
	GoalID string            `json:"goal_id"`
	Status engine.GoalStatus `json:"status"`
}

// errorResponse is the error envelope every endpoint shares.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSubmitGoal(w http.ResponseWriter, r *http.Request) {
	var req submitGoalRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, engine.ErrCodeValidation, "invalid request body")
		return
	}

	goal, err := s.submitter.SubmitGoal(r.Context(), req.Owner, req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitGoalResponse{
		GoalID: goal.ID,
		Status: goal.Status,
	})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit)

	goals, err := s.store.ListGoals(r.Context(), limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if goals == nil {
		goals = []*engine.Goal{}
	}
	s.writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.store.GetGoal(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleGetActivePlan(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")

	plan, err := s.store.GetActivePlan(r.Context(), goalID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if plan == nil {
		s.writeError(w, http.StatusNotFound, engine.ErrCodeNotFound, "no active plan for goal "+goalID)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handlePlanHistory(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlanVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if plans == nil {
		plans = []*engine.Plan{}
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleAgentLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.GetAgentLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if logs == nil {
		logs = []*engine.AgentLog{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	descriptors := []capability.Descriptor{}
	if s.registry != nil {
		descriptors = s.registry.List()
	}
	s.writeJSON(w, http.StatusOK, descriptors)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps a classified error onto an HTTP status.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	code := engine.GetErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case engine.ErrCodeNotFound:
		status = http.StatusNotFound
	case engine.ErrCodeValidation:
		status = http.StatusBadRequest
	case engine.ErrCodeConflict:
		status = http.StatusConflict
	case engine.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	s.writeError(w, status, code, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// queryLimit parses ?limit= with a fallback. Non-positive and malformed
// values fall back as well.
func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
