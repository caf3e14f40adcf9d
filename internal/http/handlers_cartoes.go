package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

type cartaoRequest struct {
	PessoaID       string    `json:"pessoa_id"`
	Descricao      string    `json:"descricao"`
	ValorTotal     float64   `json:"valor_total"`
	ParcelasTotais int       `json:"parcelas_totais"`
	ParcelasPagas  int       `json:"parcelas_pagas"`
	DataCompra     time.Time `json:"data_compra"`
}

type installmentRequest struct {
	Numero int `json:"numero"`
}

func (s *Server) handleListCartoes(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	cartoes, err := s.store.ListCartoes(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartoes)
}

func (s *Server) handleCreateCartao(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req cartaoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	now := time.Now().UTC()
	dataCompra := req.DataCompra
	if dataCompra.IsZero() {
		dataCompra = now
	}

	c := core.Cartao{
		ID:             uuid.NewString(),
		OwnerID:        identity.UserID,
		PessoaID:       req.PessoaID,
		Descricao:      req.Descricao,
		ValorTotal:     req.ValorTotal,
		ParcelasTotais: req.ParcelasTotais,
		ParcelasPagas:  req.ParcelasPagas,
		DataCompra:     dataCompra,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	c.ValorPago = ledger.InstallmentAmount(&c) * float64(c.ParcelasPagas)

	if err := s.store.CreateCartao(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "cartao_created")
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCartao(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	c, err := s.store.GetCartao(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCartao(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req cartaoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	existing, err := s.store.GetCartao(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	c := *existing
	c.PessoaID = req.PessoaID
	c.Descricao = req.Descricao
	c.ValorTotal = req.ValorTotal
	c.ParcelasTotais = req.ParcelasTotais
	c.ParcelasPagas = req.ParcelasPagas
	if !req.DataCompra.IsZero() {
		c.DataCompra = req.DataCompra
	}
	c.UpdatedAt = time.Now().UTC()
	if err := c.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	c.ValorPago = ledger.InstallmentAmount(&c) * float64(c.ParcelasPagas)
	c.Parcelas = nil

	if err := s.store.UpdateCartao(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "cartao_updated")
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCartao(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := s.store.DeleteCartao(r.Context(), identity.UserID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "cartao_deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListParcelas(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	parcelas, err := s.store.EnsureParcelas(r.Context(), s.ledger, identity.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, parcelas)
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	s.applyInstallment(w, r, s.store.PayInstallment, "installment_paid")
}

func (s *Server) handleUnpayInstallment(w http.ResponseWriter, r *http.Request) {
	s.applyInstallment(w, r, s.store.UnpayInstallment, "installment_unpaid")
}

func (s *Server) applyInstallment(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, eng ledger.Engine, ownerID, cartaoID string, numero int, now time.Time) (*core.Cartao, error),
	source string) {

	identity := identityFrom(r)

	var req installmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	c, err := op(r.Context(), s.ledger, identity.UserID, r.PathValue("id"), req.Numero, time.Now().UTC())
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, source)
	respondJSON(w, http.StatusOK, c)
}
