package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carteira/internal/core"
)

// Batch application for the sync protocol. Each mode runs in one
// transaction: a batch either lands whole or not at all. Upserts are
// explicit select-then-write so the same batch can be pushed twice without
// constraint errors.

// ApplySyncMerge upserts every record of the batch, leaving rows absent from
// the batch untouched.
func (s *Store) ApplySyncMerge(ctx context.Context, ownerID string, data core.UserData) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return applyBatch(ctx, tx, ownerID, data)
	})
}

// ApplySyncReplace deletes the user's existing collections and inserts the
// batch from scratch. Other users' rows are never touched.
func (s *Store) ApplySyncReplace(ctx context.Context, ownerID string, data core.UserData) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Children first so the deletes never trip a foreign key. Parcelas
		// and gasto references go away via ON DELETE clauses.
		for _, table := range []string{"gastos", "recorrencias", "cartoes", "pessoas"} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE owner_id = ?`, ownerID); err != nil {
				return fmt.Errorf("replace: clear %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_settings WHERE user_id = ?`, ownerID); err != nil {
			return fmt.Errorf("replace: clear user_settings: %w", err)
		}
		return applyBatch(ctx, tx, ownerID, data)
	})
}

// asSyncIntegrity reclassifies a foreign-key failure raised while applying a
// batch. The records were validated before the transaction started, so a
// reference that still fails to resolve is a cross-record problem of the
// batch itself, not a bad field.
func asSyncIntegrity(err error) error {
	if errors.Is(err, core.ErrValidation) {
		return fmt.Errorf("%w: %v", core.ErrSyncIntegrity, err)
	}
	return err
}

// applyBatch writes collections parents-first so references inside the batch
// resolve: pessoas before the cartoes that point at them, recorrencias
// before the gastos they spawned.
func applyBatch(ctx context.Context, tx *sql.Tx, ownerID string, data core.UserData) error {
	for _, p := range data.Pessoas {
		p.OwnerID = ownerID
		if err := upsertPessoa(ctx, tx, p); err != nil {
			return asSyncIntegrity(err)
		}
	}
	for _, c := range data.Cartoes {
		c.OwnerID = ownerID
		if err := upsertCartao(ctx, tx, c); err != nil {
			return asSyncIntegrity(err)
		}
	}
	for _, r := range data.Recorrencias {
		r.OwnerID = ownerID
		if err := upsertRecorrencia(ctx, tx, r); err != nil {
			return asSyncIntegrity(err)
		}
	}
	for _, g := range data.Gastos {
		g.OwnerID = ownerID
		if err := upsertGasto(ctx, tx, g); err != nil {
			return asSyncIntegrity(err)
		}
	}
	if data.Settings != nil {
		settings := *data.Settings
		settings.UserID = ownerID
		if err := putSettingsTx(ctx, tx, settings); err != nil {
			return err
		}
	}
	return nil
}

func upsertPessoa(ctx context.Context, tx *sql.Tx, p core.Pessoa) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE pessoas SET nome = ?, telefone = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		p.Nome, p.Telefone, p.UpdatedAt, p.ID, p.OwnerID)
	if err != nil {
		return fmt.Errorf("sync pessoa %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pessoas (`+pessoaColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Nome, p.Telefone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sync pessoa %s: %w", p.ID, mapConstraintErr(err))
	}
	return nil
}

func upsertCartao(ctx context.Context, tx *sql.Tx, c core.Cartao) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cartoes
		 SET pessoa_id = ?, descricao = ?, valor_total = ?, parcelas_totais = ?,
		     parcelas_pagas = ?, valor_pago = ?, data_compra = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		c.PessoaID, c.Descricao, c.ValorTotal, c.ParcelasTotais,
		c.ParcelasPagas, c.ValorPago, c.DataCompra, c.UpdatedAt,
		c.ID, c.OwnerID)
	if err != nil {
		return fmt.Errorf("sync cartao %s: %w", c.ID, mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cartoes (`+cartaoColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerID, c.PessoaID, c.Descricao, c.ValorTotal,
			c.ParcelasTotais, c.ParcelasPagas, c.ValorPago, c.DataCompra,
			c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("sync cartao %s: %w", c.ID, mapConstraintErr(err))
		}
	}

	// The pushed schedule replaces whatever was materialized server-side.
	if len(c.Parcelas) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM parcelas WHERE cartao_id = ?`, c.ID); err != nil {
		return fmt.Errorf("sync parcelas of %s: %w", c.ID, err)
	}
	for i := range c.Parcelas {
		c.Parcelas[i].CartaoID = c.ID
	}
	return insertParcelas(ctx, tx, c.Parcelas)
}

func upsertRecorrencia(ctx context.Context, tx *sql.Tx, r core.Recorrencia) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE recorrencias
		 SET valor = ?, categoria = ?, metodo_pagamento = ?, frequencia = ?,
		     data_inicio = ?, ultima_execucao = ?, ativo = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		r.Valor, r.Categoria, r.MetodoPagamento, r.Frequencia,
		r.DataInicio, nullableTime(r.UltimaExecucao), boolToInt(r.Ativo),
		r.UpdatedAt, r.ID, r.OwnerID)
	if err != nil {
		return fmt.Errorf("sync recorrencia %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO recorrencias (`+recorrenciaColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.Valor, r.Categoria, r.MetodoPagamento, r.Frequencia,
		r.DataInicio, nullableTime(r.UltimaExecucao), boolToInt(r.Ativo),
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sync recorrencia %s: %w", r.ID, mapConstraintErr(err))
	}
	return nil
}

func upsertGasto(ctx context.Context, tx *sql.Tx, g core.Gasto) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE gastos
		 SET valor = ?, data = ?, categoria = ?, metodo_pagamento = ?,
		     recorrente_id = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		g.Valor, g.Data, g.Categoria, g.MetodoPagamento,
		g.RecorrenteID, g.UpdatedAt, g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("sync gasto %s: %w", g.ID, mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO gastos (`+gastoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Valor, g.Data, g.Categoria,
		g.MetodoPagamento, g.RecorrenteID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sync gasto %s: %w", g.ID, mapConstraintErr(err))
	}
	return nil
}

// SnapshotUserData reads every collection of a user for the pull side of the
// protocol. Cards come back with their materialized schedules.
func (s *Store) SnapshotUserData(ctx context.Context, ownerID string) (core.UserData, error) {
	var (
		data core.UserData
		err  error
	)
	if data.Pessoas, err = s.ListPessoas(ctx, ownerID); err != nil {
		return core.UserData{}, err
	}
	if data.Cartoes, err = s.ListCartoes(ctx, ownerID); err != nil {
		return core.UserData{}, err
	}
	for i := range data.Cartoes {
		data.Cartoes[i].Parcelas, err = s.listParcelas(ctx, s.db, data.Cartoes[i].ID)
		if err != nil {
			return core.UserData{}, err
		}
	}
	if data.Gastos, err = s.ListGastos(ctx, ownerID); err != nil {
		return core.UserData{}, err
	}
	if data.Recorrencias, err = s.ListRecorrencias(ctx, ownerID); err != nil {
		return core.UserData{}, err
	}
	settings, err := s.GetSettings(ctx, ownerID)
	if err != nil {
		return core.UserData{}, err
	}
	data.Settings = &settings
	return data, nil
}
