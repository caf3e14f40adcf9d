package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
)

type gastoRequest struct {
	Valor           float64   `json:"valor"`
	Data            time.Time `json:"data"`
	Categoria       string    `json:"categoria"`
	MetodoPagamento string    `json:"metodo_pagamento"`
}

func (s *Server) handleListGastos(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	gastos, err := s.store.ListGastos(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, gastos)
}

func (s *Server) handleCreateGasto(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req gastoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	now := time.Now().UTC()
	g := core.Gasto{
		ID:              uuid.NewString(),
		OwnerID:         identity.UserID,
		Valor:           req.Valor,
		Data:            req.Data,
		Categoria:       req.Categoria,
		MetodoPagamento: req.MetodoPagamento,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if g.Data.IsZero() {
		g.Data = now
	}
	if err := g.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.CreateGasto(r.Context(), g); err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "gasto_created")
	respondJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGasto(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	g, err := s.store.GetGasto(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGasto(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req gastoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	existing, err := s.store.GetGasto(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	g := *existing
	g.Valor = req.Valor
	g.Categoria = req.Categoria
	g.MetodoPagamento = req.MetodoPagamento
	if !req.Data.IsZero() {
		g.Data = req.Data
	}
	g.UpdatedAt = time.Now().UTC()
	if err := g.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.UpdateGasto(r.Context(), g); err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "gasto_updated")
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGasto(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := s.store.DeleteGasto(r.Context(), identity.UserID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "gasto_deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
