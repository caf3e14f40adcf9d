package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carteira/internal/core"
)

const gastoColumns = `id, owner_id, valor, data, categoria, metodo_pagamento, recorrente_id, created_at, updated_at`

func scanGasto(scan func(dest ...any) error) (core.Gasto, error) {
	var (
		g   core.Gasto
		rec sql.NullString
	)
	err := scan(&g.ID, &g.OwnerID, &g.Valor, &g.Data, &g.Categoria,
		&g.MetodoPagamento, &rec, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.Gasto{}, err
	}
	if rec.Valid {
		g.RecorrenteID = &rec.String
	}
	return g, nil
}

func (s *Store) ListGastos(ctx context.Context, ownerID string) ([]core.Gasto, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gastoColumns+` FROM gastos WHERE owner_id = ? ORDER BY data DESC, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list gastos: %w", err)
	}
	defer rows.Close()

	gastos := []core.Gasto{}
	for rows.Next() {
		g, err := scanGasto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan gasto: %w", err)
		}
		gastos = append(gastos, g)
	}
	return gastos, rows.Err()
}

func (s *Store) GetGasto(ctx context.Context, ownerID, id string) (*core.Gasto, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gastoColumns+` FROM gastos WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	g, err := scanGasto(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: gasto %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan gasto: %w", err)
	}
	return &g, nil
}

func (s *Store) CreateGasto(ctx context.Context, g core.Gasto) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gastos (`+gastoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Valor, g.Data, g.Categoria,
		g.MetodoPagamento, g.RecorrenteID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create gasto: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *Store) UpdateGasto(ctx context.Context, g core.Gasto) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE gastos SET valor = ?, data = ?, categoria = ?, metodo_pagamento = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		g.Valor, g.Data, g.Categoria, g.MetodoPagamento, g.UpdatedAt, g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("update gasto: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: gasto %s", core.ErrNotFound, g.ID)
	}
	return nil
}

func (s *Store) DeleteGasto(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM gastos WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete gasto: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: gasto %s", core.ErrNotFound, id)
	}
	return nil
}

// SumGastosInRange totals a user's expenses in [from, to).
func (s *Store) SumGastosInRange(ctx context.Context, ownerID string, from, to time.Time) (float64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(valor), 0) FROM gastos
		 WHERE owner_id = ? AND data >= ? AND data < ?`,
		ownerID, from, to)
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum gastos: %w", err)
	}
	return total, nil
}
