package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/console"
	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
)

const maxRequestBody = 4096

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Status driver.Status `json:"status"`
	View   matrix.View   `json:"view"`
}

// VariablesResponse is the body of GET /api/variables.
type VariablesResponse struct {
	Definitions []console.Definition `json:"definitions"`
	Values      map[string]string    `json:"values"`
}

// ChoicesResponse is the body of GET /api/choices.
type ChoicesResponse struct {
	Inputs  []matrix.Choice `json:"inputs"`
	Outputs []matrix.Choice `json:"outputs"`
}

// CommandRequest asks for one intent. Action is one of route, route-all,
// pass-through, lock, unlock.
type CommandRequest struct {
	ID      string `json:"id,omitempty"`
	Action  string `json:"action"`
	Input   int    `json:"input,omitempty"`
	Outputs []int  `json:"outputs,omitempty"`
}

// Intent converts the request.
func (r CommandRequest) Intent() (protocol.Intent, error) {
	action, err := protocol.ParseAction(r.Action)
	if err != nil {
		return protocol.Intent{}, err
	}
	return protocol.Intent{Action: action, Input: r.Input, Outputs: r.Outputs}, nil
}

// CommandResponse reports what happened to a command. A command dropped
// because the device is disconnected has Sent false and Suppressed true;
// that is not an error.
type CommandResponse struct {
	ID         string `json:"id,omitempty"`
	Sent       bool   `json:"sent"`
	Suppressed bool   `json:"suppressed,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/variables", s.handleVariables)
	mux.HandleFunc("GET /api/choices", s.handleChoices)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Status: s.backend.Status(),
		View:   s.backend.State(),
	})
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	v := s.backend.State()
	writeJSON(w, http.StatusOK, VariablesResponse{
		Definitions: console.VariableDefinitions(v.Model),
		Values:      console.Variables(v),
	})
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	inputs, outputs := matrix.Choices(s.backend.State())
	writeJSON(w, http.StatusOK, ChoicesResponse{Inputs: inputs, Outputs: outputs})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.backend.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CommandResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	resp, err := s.executeRequest(r.Context(), req)
	writeJSON(w, commandStatus(err), resp)
}

func (s *Server) executeRequest(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	resp := CommandResponse{ID: req.ID}

	intent, err := req.Intent()
	if err != nil {
		resp.Error = err.Error()
		return resp, deviceerr.NewValidationError(err.Error())
	}

	sent, err := s.backend.Execute(ctx, intent)
	resp.Sent = sent
	switch {
	case errors.Is(err, driver.ErrCommandSuppressed):
		resp.Suppressed = true
		return resp, nil
	case err != nil:
		resp.Error = err.Error()
		logging.Warn("Command failed",
			zap.Stringer("intent", intent),
			zap.Error(err),
		)
	}
	return resp, err
}

func commandStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case deviceerr.IsValidationError(err), errors.Is(err, protocol.ErrNoOutputs):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
