package apiserver

import (
	"net/http"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// Transfer-gate instructions. The gate is a separate program with its own
// authorities; its state lives in the same hosted ledger as the settlement
// engine, so hooked mints created through create-ecosystem are vetoed by it
// on every transfer.

type gateInitializeRequest struct {
	Payer string `json:"payer"`
}

type gateWhitelistRequest struct {
	Authority string `json:"authority"`
	Wallet    string `json:"wallet"`
}

type gateToggleFreezeRequest struct {
	Authority string `json:"authority"`
}

func (s *Service) handleGateInitialize(w http.ResponseWriter, r *http.Request) {
	var req gateInitializeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	payer, err := parseKey("payer", req.Payer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.led.Update(func(v ledger.View) error {
		return s.gate.Initialize(v, payer)
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleGateWhitelist(w http.ResponseWriter, r *http.Request, add bool) {
	var req gateWhitelistRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	authority, err := parseKey("authority", req.Authority)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet, err := parseKey("wallet", req.Wallet)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.led.Update(func(v ledger.View) error {
		if add {
			return s.gate.AddToWhitelist(v, authority, wallet)
		}
		return s.gate.RemoveFromWhitelist(v, authority, wallet)
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Service) handleGateToggleFreeze(w http.ResponseWriter, r *http.Request) {
	var req gateToggleFreezeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	authority, err := parseKey("authority", req.Authority)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var frozen bool
	err = s.led.Update(func(v ledger.View) error {
		state, toggleErr := s.gate.ToggleFreeze(v, authority)
		if toggleErr != nil {
			return toggleErr
		}
		frozen = state
		return nil
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, freezeResponse{Frozen: frozen})
}
