package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carteira/internal/core"
)

const recorrenciaColumns = `id, owner_id, valor, categoria, metodo_pagamento, frequencia,
	data_inicio, ultima_execucao, ativo, created_at, updated_at`

func scanRecorrencia(scan func(dest ...any) error) (core.Recorrencia, error) {
	var (
		r      core.Recorrencia
		ultima sql.NullTime
		ativo  int
	)
	err := scan(&r.ID, &r.OwnerID, &r.Valor, &r.Categoria, &r.MetodoPagamento,
		&r.Frequencia, &r.DataInicio, &ultima, &ativo, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return core.Recorrencia{}, err
	}
	if ultima.Valid {
		t := ultima.Time
		r.UltimaExecucao = &t
	}
	r.Ativo = ativo != 0
	return r, nil
}

func (s *Store) ListRecorrencias(ctx context.Context, ownerID string) ([]core.Recorrencia, error) {
	return s.listRecorrencias(ctx, ownerID, false)
}

// ListRecorrenciasAtivas feeds the recurrence scheduler.
func (s *Store) ListRecorrenciasAtivas(ctx context.Context, ownerID string) ([]core.Recorrencia, error) {
	return s.listRecorrencias(ctx, ownerID, true)
}

func (s *Store) listRecorrencias(ctx context.Context, ownerID string, onlyActive bool) ([]core.Recorrencia, error) {
	query := `SELECT ` + recorrenciaColumns + ` FROM recorrencias WHERE owner_id = ?`
	if onlyActive {
		query += ` AND ativo = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recorrencias: %w", err)
	}
	defer rows.Close()

	recorrencias := []core.Recorrencia{}
	for rows.Next() {
		r, err := scanRecorrencia(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan recorrencia: %w", err)
		}
		recorrencias = append(recorrencias, r)
	}
	return recorrencias, rows.Err()
}

func (s *Store) GetRecorrencia(ctx context.Context, ownerID, id string) (*core.Recorrencia, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recorrenciaColumns+` FROM recorrencias WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	r, err := scanRecorrencia(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recorrencia %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan recorrencia: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateRecorrencia(ctx context.Context, r core.Recorrencia) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recorrencias (`+recorrenciaColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.Valor, r.Categoria, r.MetodoPagamento, r.Frequencia,
		r.DataInicio, nullableTime(r.UltimaExecucao), boolToInt(r.Ativo),
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recorrencia: %w", mapConstraintErr(err))
	}
	return nil
}

// UpdateRecorrencia covers manual edits; ultima_execucao is advanced only
// by the scheduler through MaterializeRecorrencia.
func (s *Store) UpdateRecorrencia(ctx context.Context, r core.Recorrencia) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recorrencias
		 SET valor = ?, categoria = ?, metodo_pagamento = ?, frequencia = ?,
		     data_inicio = ?, ativo = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		r.Valor, r.Categoria, r.MetodoPagamento, r.Frequencia,
		r.DataInicio, boolToInt(r.Ativo), r.UpdatedAt, r.ID, r.OwnerID)
	if err != nil {
		return fmt.Errorf("update recorrencia: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: recorrencia %s", core.ErrNotFound, r.ID)
	}
	return nil
}

func (s *Store) DeleteRecorrencia(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM recorrencias WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete recorrencia: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: recorrencia %s", core.ErrNotFound, id)
	}
	return nil
}

// MaterializeRecorrencia inserts the spawned gasto and stamps the
// definition's ultima_execucao atomically, so a failure in either leaves no
// half-applied state behind.
func (s *Store) MaterializeRecorrencia(ctx context.Context, recorrenciaID string, gasto core.Gasto, executedAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO gastos (`+gastoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			gasto.ID, gasto.OwnerID, gasto.Valor, gasto.Data, gasto.Categoria,
			gasto.MetodoPagamento, gasto.RecorrenteID, gasto.CreatedAt, gasto.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert materialized gasto: %w", mapConstraintErr(err))
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE recorrencias SET ultima_execucao = ?, updated_at = ? WHERE id = ?`,
			executedAt, executedAt, recorrenciaID)
		if err != nil {
			return fmt.Errorf("stamp ultima_execucao: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: recorrencia %s", core.ErrNotFound, recorrenciaID)
		}
		return nil
	})
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
