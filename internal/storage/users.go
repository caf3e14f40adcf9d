package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carteira/internal/core"
)

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, nome, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Nome, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, nome, password_hash, created_at FROM users WHERE email = ?`,
		email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, nome, password_hash, created_at FROM users WHERE id = ?`,
		id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Nome, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
