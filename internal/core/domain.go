package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Semanal Frequencia = "Semanal"
	Mensal  Frequencia = "Mensal"
	Anual   Frequencia = "Anual"
)

type (
	// Frequencia is the repetition frequency of a Recorrencia.
	Frequencia string

	// User is an account holder. Every other record is scoped to a user.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Nome         string    `json:"nome"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// Session is the server-recorded proof that a bearer token is still
	// valid, independent of the token's own expiry claim. The raw token is
	// never stored, only its hash.
	Session struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		TokenHash    string    `json:"-"`
		DeviceInfo   string    `json:"device_info"`
		IPAddress    string    `json:"ip_address"`
		CreatedAt    time.Time `json:"created_at"`
		LastActivity time.Time `json:"last_activity"`
		ExpiresAt    time.Time `json:"expires_at"`
		IsActive     bool      `json:"is_active"`
	}

	// Pessoa is a counterparty who owes on one or more Cartoes.
	Pessoa struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"`
		Nome      string    `json:"nome"`
		Telefone  string    `json:"telefone,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Cartao is a tracked loan repaid in fixed installments.
	//
	// Invariant: ValorPago == (ValorTotal/ParcelasTotais) * ParcelasPagas,
	// recomputed from scratch after every mutation, never by incremental
	// addition.
	Cartao struct {
		ID             string    `json:"id"`
		OwnerID        string    `json:"-"`
		PessoaID       string    `json:"pessoa_id"`
		Descricao      string    `json:"descricao"`
		ValorTotal     float64   `json:"valor_total"`
		ParcelasTotais int       `json:"parcelas_totais"`
		ParcelasPagas  int       `json:"parcelas_pagas"`
		ValorPago      float64   `json:"valor_pago"`
		DataCompra     time.Time `json:"data_compra"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`

		// Parcelas may be empty for cards created without a materialized
		// schedule; the ledger backfills them deterministically on demand.
		Parcelas []Parcela `json:"parcelas,omitempty"`
	}

	// Parcela is one fixed-size repayment unit of a Cartao, identified by
	// its sequence number (1..ParcelasTotais, unique per card).
	Parcela struct {
		CartaoID      string     `json:"cartao_id"`
		Numero        int        `json:"numero"`
		Valor         float64    `json:"valor"`
		Vencimento    time.Time  `json:"vencimento"`
		Paga          bool       `json:"paga"`
		DataPagamento *time.Time `json:"data_pagamento,omitempty"`
	}

	// Gasto is a discrete spending record, optionally spawned from a
	// Recorrencia.
	Gasto struct {
		ID              string    `json:"id"`
		OwnerID         string    `json:"-"`
		Valor           float64   `json:"valor"`
		Data            time.Time `json:"data"`
		Categoria       string    `json:"categoria"`
		MetodoPagamento string    `json:"metodo_pagamento"`
		RecorrenteID    *string   `json:"recorrente_id,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	// Recorrencia is a periodic rule that materializes Gasto records.
	Recorrencia struct {
		ID              string     `json:"id"`
		OwnerID         string     `json:"-"`
		Valor           float64    `json:"valor"`
		Categoria       string     `json:"categoria"`
		MetodoPagamento string     `json:"metodo_pagamento"`
		Frequencia      Frequencia `json:"frequencia"`
		DataInicio      time.Time  `json:"data_inicio"`
		UltimaExecucao  *time.Time `json:"ultima_execucao,omitempty"`
		Ativo           bool       `json:"ativo"`
		CreatedAt       time.Time  `json:"created_at"`
		UpdatedAt       time.Time  `json:"updated_at"`
	}

	// UserSettings holds per-user client preferences.
	UserSettings struct {
		UserID            string    `json:"-"`
		Tema              string    `json:"tema"`
		Moeda             string    `json:"moeda"`
		DiaVencimento     int       `json:"dia_vencimento"`
		NotificacoesAtivo bool      `json:"notificacoes_ativo"`
		UpdatedAt         time.Time `json:"updated_at"`
	}
)

func (p Pessoa) Validate() error {
	if strings.TrimSpace(p.Nome) == "" {
		return fmt.Errorf("%w: nome cannot be empty", ErrValidation)
	}
	if len(p.Nome) > 200 {
		return fmt.Errorf("%w: nome too long (max 200 characters)", ErrValidation)
	}
	return nil
}

func (c Cartao) Validate() error {
	if strings.TrimSpace(c.PessoaID) == "" {
		return fmt.Errorf("%w: pessoa_id cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(c.Descricao) == "" {
		return fmt.Errorf("%w: descricao cannot be empty", ErrValidation)
	}
	if c.ValorTotal <= 0 {
		return fmt.Errorf("%w: valor_total must be positive", ErrValidation)
	}
	if c.ParcelasTotais < 1 {
		return fmt.Errorf("%w: parcelas_totais must be at least 1", ErrValidation)
	}
	if c.ParcelasPagas < 0 || c.ParcelasPagas > c.ParcelasTotais {
		return fmt.Errorf("%w: parcelas_pagas out of range [0, %d]", ErrValidation, c.ParcelasTotais)
	}
	return nil
}

func (g Gasto) Validate() error {
	if g.Valor <= 0 {
		return fmt.Errorf("%w: valor must be positive", ErrValidation)
	}
	if g.Data.IsZero() {
		return fmt.Errorf("%w: data cannot be zero", ErrValidation)
	}
	if strings.TrimSpace(g.Categoria) == "" {
		return fmt.Errorf("%w: categoria cannot be empty", ErrValidation)
	}
	return nil
}

func (r Recorrencia) Validate() error {
	if r.Valor <= 0 {
		return fmt.Errorf("%w: valor must be positive", ErrValidation)
	}
	if strings.TrimSpace(r.Categoria) == "" {
		return fmt.Errorf("%w: categoria cannot be empty", ErrValidation)
	}
	if r.DataInicio.IsZero() {
		return fmt.Errorf("%w: data_inicio cannot be zero", ErrValidation)
	}
	switch r.Frequencia {
	case Semanal, Mensal, Anual:
	default:
		return fmt.Errorf("%w: invalid frequencia %q", ErrValidation, r.Frequencia)
	}
	return nil
}
