package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

const cartaoColumns = `id, owner_id, pessoa_id, descricao, valor_total,
	parcelas_totais, parcelas_pagas, valor_pago, data_compra, created_at, updated_at`

func scanCartao(scan func(dest ...any) error) (core.Cartao, error) {
	var c core.Cartao
	err := scan(&c.ID, &c.OwnerID, &c.PessoaID, &c.Descricao, &c.ValorTotal,
		&c.ParcelasTotais, &c.ParcelasPagas, &c.ValorPago, &c.DataCompra,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.Cartao{}, err
	}
	return c, nil
}

func (s *Store) ListCartoes(ctx context.Context, ownerID string) ([]core.Cartao, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cartaoColumns+` FROM cartoes WHERE owner_id = ? ORDER BY data_compra DESC, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cartoes: %w", err)
	}
	defer rows.Close()

	cartoes := []core.Cartao{}
	for rows.Next() {
		c, err := scanCartao(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan cartao: %w", err)
		}
		cartoes = append(cartoes, c)
	}
	return cartoes, rows.Err()
}

// GetCartao loads a card together with its installment schedule.
func (s *Store) GetCartao(ctx context.Context, ownerID, id string) (*core.Cartao, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cartaoColumns+` FROM cartoes WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	c, err := scanCartao(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cartao %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan cartao: %w", err)
	}

	c.Parcelas, err = s.listParcelas(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) listParcelas(ctx context.Context, q querier, cartaoID string) ([]core.Parcela, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT cartao_id, numero, valor, vencimento, paga, data_pagamento
		 FROM parcelas WHERE cartao_id = ? ORDER BY numero`,
		cartaoID)
	if err != nil {
		return nil, fmt.Errorf("list parcelas: %w", err)
	}
	defer rows.Close()

	parcelas := []core.Parcela{}
	for rows.Next() {
		var (
			p    core.Parcela
			paga int
			pago sql.NullTime
		)
		if err := rows.Scan(&p.CartaoID, &p.Numero, &p.Valor, &p.Vencimento, &paga, &pago); err != nil {
			return nil, fmt.Errorf("scan parcela: %w", err)
		}
		p.Paga = paga != 0
		if pago.Valid {
			t := pago.Time
			p.DataPagamento = &t
		}
		parcelas = append(parcelas, p)
	}
	return parcelas, rows.Err()
}

// CreateCartao verifies the pessoa belongs to the same owner before
// inserting, so one user cannot attach debts to another user's counterparty.
func (s *Store) CreateCartao(ctx context.Context, c core.Cartao) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := pessoaBelongsTo(ctx, tx, c.OwnerID, c.PessoaID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cartoes (`+cartaoColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerID, c.PessoaID, c.Descricao, c.ValorTotal,
			c.ParcelasTotais, c.ParcelasPagas, c.ValorPago, c.DataCompra,
			c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create cartao: %w", mapConstraintErr(err))
		}
		return insertParcelas(ctx, tx, c.Parcelas)
	})
}

func (s *Store) UpdateCartao(ctx context.Context, c core.Cartao) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := pessoaBelongsTo(ctx, tx, c.OwnerID, c.PessoaID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE cartoes
			 SET pessoa_id = ?, descricao = ?, valor_total = ?, parcelas_totais = ?,
			     parcelas_pagas = ?, valor_pago = ?, data_compra = ?, updated_at = ?
			 WHERE id = ? AND owner_id = ?`,
			c.PessoaID, c.Descricao, c.ValorTotal, c.ParcelasTotais,
			c.ParcelasPagas, c.ValorPago, c.DataCompra, c.UpdatedAt,
			c.ID, c.OwnerID)
		if err != nil {
			return fmt.Errorf("update cartao: %w", mapConstraintErr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: cartao %s", core.ErrNotFound, c.ID)
		}

		// Editing totals invalidates any previously materialized schedule;
		// it is rebuilt lazily on the next read.
		_, err = tx.ExecContext(ctx, `DELETE FROM parcelas WHERE cartao_id = ?`, c.ID)
		if err != nil {
			return fmt.Errorf("reset parcelas: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteCartao(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cartoes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete cartao: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: cartao %s", core.ErrNotFound, id)
	}
	return nil
}

// EnsureParcelas returns a card's schedule, materializing and persisting it
// when the card was created without one.
func (s *Store) EnsureParcelas(ctx context.Context, eng ledger.Engine, ownerID, cartaoID string) ([]core.Parcela, error) {
	c, err := s.GetCartao(ctx, ownerID, cartaoID)
	if err != nil {
		return nil, err
	}
	if len(c.Parcelas) > 0 {
		return c.Parcelas, nil
	}

	parcelas := eng.Backfill(c)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return insertParcelas(ctx, tx, parcelas)
	})
	if err != nil {
		return nil, err
	}
	return parcelas, nil
}

// PayInstallment applies a payment in a single transaction: the ledger
// transition runs on the loaded card, then both the parcela row and the
// card's aggregates are written back. The aggregate update is guarded by the
// previously read parcelas_pagas; a concurrent writer makes it match zero
// rows and the whole payment rolls back as a conflict.
func (s *Store) PayInstallment(ctx context.Context, eng ledger.Engine, ownerID, cartaoID string, numero int, now time.Time) (*core.Cartao, error) {
	return s.applyInstallment(ctx, eng, ownerID, cartaoID, numero, now, ledger.Engine.Pay)
}

// UnpayInstallment reverses a payment under the same guard as PayInstallment.
func (s *Store) UnpayInstallment(ctx context.Context, eng ledger.Engine, ownerID, cartaoID string, numero int, now time.Time) (*core.Cartao, error) {
	return s.applyInstallment(ctx, eng, ownerID, cartaoID, numero, now, ledger.Engine.Unpay)
}

func (s *Store) applyInstallment(ctx context.Context, eng ledger.Engine, ownerID, cartaoID string, numero int, now time.Time,
	transition func(ledger.Engine, *core.Cartao, int, time.Time) error) (*core.Cartao, error) {

	var out *core.Cartao
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+cartaoColumns+` FROM cartoes WHERE id = ? AND owner_id = ?`,
			cartaoID, ownerID)
		c, err := scanCartao(row.Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cartao %s", core.ErrNotFound, cartaoID)
		}
		if err != nil {
			return fmt.Errorf("scan cartao: %w", err)
		}
		prevPagas := c.ParcelasPagas

		c.Parcelas, err = s.listParcelas(ctx, tx, cartaoID)
		if err != nil {
			return err
		}
		hadSchedule := len(c.Parcelas) > 0

		if err := transition(eng, &c, numero, now); err != nil {
			return err
		}

		if !hadSchedule {
			if err := insertParcelas(ctx, tx, c.Parcelas); err != nil {
				return err
			}
		}

		var p core.Parcela
		for _, candidate := range c.Parcelas {
			if candidate.Numero == numero {
				p = candidate
				break
			}
		}
		if p.Numero == 0 {
			return fmt.Errorf("%w: installment %d is not in the schedule", core.ErrValidation, numero)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE parcelas SET paga = ?, data_pagamento = ?
			 WHERE cartao_id = ? AND numero = ?`,
			boolToInt(p.Paga), nullableTime(p.DataPagamento), cartaoID, numero)
		if err != nil {
			return fmt.Errorf("update parcela: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE cartoes
			 SET parcelas_pagas = ?, valor_pago = ?, updated_at = ?
			 WHERE id = ? AND parcelas_pagas = ?`,
			c.ParcelasPagas, c.ValorPago, c.UpdatedAt, cartaoID, prevPagas)
		if err != nil {
			return fmt.Errorf("update cartao aggregates: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: cartao %s was modified concurrently", core.ErrConflict, cartaoID)
		}

		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertParcelas(ctx context.Context, tx *sql.Tx, parcelas []core.Parcela) error {
	for _, p := range parcelas {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO parcelas (cartao_id, numero, valor, vencimento, paga, data_pagamento)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.CartaoID, p.Numero, p.Valor, p.Vencimento,
			boolToInt(p.Paga), nullableTime(p.DataPagamento))
		if err != nil {
			return fmt.Errorf("insert parcela %d: %w", p.Numero, mapConstraintErr(err))
		}
	}
	return nil
}

func pessoaBelongsTo(ctx context.Context, tx *sql.Tx, ownerID, pessoaID string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM pessoas WHERE id = ? AND owner_id = ?`,
		pessoaID, ownerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: pessoa %s", core.ErrNotFound, pessoaID)
	}
	if err != nil {
		return fmt.Errorf("check pessoa owner: %w", err)
	}
	return nil
}
