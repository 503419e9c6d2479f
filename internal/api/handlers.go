// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openvend/vmcd/internal/fsm"
	"github.com/openvend/vmcd/internal/machine"
)

const maxBodyBytes = 4 << 10

type statusResponse struct {
	State     string `json:"state"`
	Deposit   int64  `json:"deposit"`
	CashBox   int64  `json:"cash_box"`
	ItemsSold int64  `json:"items_sold"`
}

type paymentRequest struct {
	Amount int64  `json:"amount"`
	Error  string `json:"error,omitempty"`
}

type triggerRequest struct {
	Trigger string `json:"trigger"`
}

type triggerResponse struct {
	State     string `json:"state"`
	Committed bool   `json:"committed"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		State:     snap.State,
		Deposit:   snap.Deposit,
		CashBox:   snap.Stats.CashBox,
		ItemsSold: snap.Stats.ItemsSold,
	})
}

// handlePayment injects a payment event, as a coin acceptor would. A
// request with an error code reports a payment fault instead of credit.
func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Error != "" {
		s.ctrl.OnPaymentError(req.Error)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "error reported"})
		return
	}
	if req.Amount <= 0 {
		writeError(w, errors.New("amount must be positive"))
		return
	}
	s.ctrl.OnPayment(req.Amount)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	committed, err := s.ctrl.TryFire(r.Context(), machine.TriggerEjectItem)
	if err != nil {
		writeServiceUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{
		State:     s.ctrl.Snapshot().State,
		Committed: committed,
	})
}

// handleTrigger fires a trigger unconditionally. An ineligible trigger
// is a conflict with the current state, not a bad request.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Trigger == "" {
		writeError(w, errors.New("trigger is required"))
		return
	}

	err := s.ctrl.Fire(r.Context(), fsm.Trigger(req.Trigger))
	var noTransition *fsm.NoTransitionError
	switch {
	case errors.As(err, &noTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": noTransition.Error()})
		return
	case err != nil:
		writeServiceUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{
		State:     s.ctrl.Snapshot().State,
		Committed: true,
	})
}

func (s *Server) handleTryTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Trigger == "" {
		writeError(w, errors.New("trigger is required"))
		return
	}

	committed, err := s.ctrl.TryFire(r.Context(), fsm.Trigger(req.Trigger))
	if err != nil {
		writeServiceUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{
		State:     s.ctrl.Snapshot().State,
		Committed: committed,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a generic error response
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
}
