package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
)

type pessoaRequest struct {
	Nome     string `json:"nome"`
	Telefone string `json:"telefone"`
}

func (s *Server) handleListPessoas(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	pessoas, err := s.store.ListPessoas(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pessoas)
}

func (s *Server) handleCreatePessoa(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req pessoaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	now := time.Now().UTC()
	p := core.Pessoa{
		ID:        uuid.NewString(),
		OwnerID:   identity.UserID,
		Nome:      req.Nome,
		Telefone:  req.Telefone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.CreatePessoa(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}

	s.notifyDataChanged(r, identity.UserID, "pessoa_created")
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPessoa(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	p, err := s.store.GetPessoa(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePessoa(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req pessoaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	existing, err := s.store.GetPessoa(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	p := *existing
	p.Nome = req.Nome
	p.Telefone = req.Telefone
	p.UpdatedAt = time.Now().UTC()
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.UpdatePessoa(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}

	s.notifyDataChanged(r, identity.UserID, "pessoa_updated")
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePessoa(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := s.store.DeletePessoa(r.Context(), identity.UserID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "pessoa_deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
