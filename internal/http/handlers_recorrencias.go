package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
)

type recorrenciaRequest struct {
	Valor           float64         `json:"valor"`
	Categoria       string          `json:"categoria"`
	MetodoPagamento string          `json:"metodo_pagamento"`
	Frequencia      core.Frequencia `json:"frequencia"`
	DataInicio      time.Time       `json:"data_inicio"`
	Ativo           *bool           `json:"ativo,omitempty"`
}

func (s *Server) handleListRecorrencias(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	recorrencias, err := s.store.ListRecorrencias(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recorrencias)
}

func (s *Server) handleCreateRecorrencia(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req recorrenciaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	now := time.Now().UTC()
	def := core.Recorrencia{
		ID:              uuid.NewString(),
		OwnerID:         identity.UserID,
		Valor:           req.Valor,
		Categoria:       req.Categoria,
		MetodoPagamento: req.MetodoPagamento,
		Frequencia:      req.Frequencia,
		DataInicio:      req.DataInicio,
		Ativo:           true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Ativo != nil {
		def.Ativo = *req.Ativo
	}
	if err := def.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.CreateRecorrencia(r.Context(), def); err != nil {
		respondError(w, r, err)
		return
	}

	s.notifyDataChanged(r, identity.UserID, "recorrencia_created")
	respondJSON(w, http.StatusCreated, def)
}

func (s *Server) handleGetRecorrencia(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	def, err := s.store.GetRecorrencia(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}

func (s *Server) handleUpdateRecorrencia(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req recorrenciaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	existing, err := s.store.GetRecorrencia(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	def := *existing
	def.Valor = req.Valor
	def.Categoria = req.Categoria
	def.MetodoPagamento = req.MetodoPagamento
	def.Frequencia = req.Frequencia
	if !req.DataInicio.IsZero() {
		def.DataInicio = req.DataInicio
	}
	if req.Ativo != nil {
		def.Ativo = *req.Ativo
	}
	def.UpdatedAt = time.Now().UTC()
	if err := def.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.UpdateRecorrencia(r.Context(), def); err != nil {
		respondError(w, r, err)
		return
	}

	s.notifyDataChanged(r, identity.UserID, "recorrencia_updated")
	respondJSON(w, http.StatusOK, def)
}

func (s *Server) handleDeleteRecorrencia(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := s.store.DeleteRecorrencia(r.Context(), identity.UserID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.notifyDataChanged(r, identity.UserID, "recorrencia_deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
