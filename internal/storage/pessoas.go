package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carteira/internal/core"
)

const pessoaColumns = `id, owner_id, nome, telefone, created_at, updated_at`

func (s *Store) ListPessoas(ctx context.Context, ownerID string) ([]core.Pessoa, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pessoaColumns+` FROM pessoas WHERE owner_id = ? ORDER BY nome`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pessoas: %w", err)
	}
	defer rows.Close()

	pessoas := []core.Pessoa{}
	for rows.Next() {
		var p core.Pessoa
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Nome, &p.Telefone, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pessoa: %w", err)
		}
		pessoas = append(pessoas, p)
	}
	return pessoas, rows.Err()
}

func (s *Store) GetPessoa(ctx context.Context, ownerID, id string) (*core.Pessoa, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pessoaColumns+` FROM pessoas WHERE id = ? AND owner_id = ?`,
		id, ownerID)

	var p core.Pessoa
	err := row.Scan(&p.ID, &p.OwnerID, &p.Nome, &p.Telefone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pessoa %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan pessoa: %w", err)
	}
	return &p, nil
}

func (s *Store) CreatePessoa(ctx context.Context, p core.Pessoa) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pessoas (`+pessoaColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Nome, p.Telefone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create pessoa: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *Store) UpdatePessoa(ctx context.Context, p core.Pessoa) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pessoas SET nome = ?, telefone = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		p.Nome, p.Telefone, p.UpdatedAt, p.ID, p.OwnerID)
	if err != nil {
		return fmt.Errorf("update pessoa: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: pessoa %s", core.ErrNotFound, p.ID)
	}
	return nil
}

func (s *Store) DeletePessoa(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pessoas WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete pessoa: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: pessoa %s", core.ErrNotFound, id)
	}
	return nil
}
