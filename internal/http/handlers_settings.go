package http

import (
	"fmt"
	"net/http"
	"time"

	"carteira/internal/core"
)

type settingsRequest struct {
	Tema              string `json:"tema"`
	Moeda             string `json:"moeda"`
	DiaVencimento     int    `json:"dia_vencimento"`
	NotificacoesAtivo bool   `json:"notificacoes_ativo"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	settings, err := s.store.GetSettings(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.DiaVencimento < 1 || req.DiaVencimento > 31 {
		respondError(w, r, fmt.Errorf("%w: dia_vencimento must be between 1 and 31", core.ErrValidation))
		return
	}
	if req.Tema == "" || req.Moeda == "" {
		respondError(w, r, fmt.Errorf("%w: tema and moeda cannot be empty", core.ErrValidation))
		return
	}

	settings := core.UserSettings{
		UserID:            identity.UserID,
		Tema:              req.Tema,
		Moeda:             req.Moeda,
		DiaVencimento:     req.DiaVencimento,
		NotificacoesAtivo: req.NotificacoesAtivo,
		UpdatedAt:         time.Now().UTC(),
	}
	if err := s.store.PutSettings(r.Context(), settings); err != nil {
		respondError(w, r, err)
		return
	}

	s.notifyDataChanged(r, identity.UserID, "settings_updated")
	respondJSON(w, http.StatusOK, settings)
}
