package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carteira/internal/core"
)

// Session persistence backing the auth.Authority. Boolean columns are
// stored as SQLite integers.

func (s *Store) CreateSession(ctx context.Context, session core.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions
		   (id, user_id, token_hash, device_info, ip_address,
		    created_at, last_activity, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.TokenHash,
		session.DeviceInfo, session.IPAddress,
		session.CreatedAt, session.LastActivity, session.ExpiresAt,
		boolToInt(session.IsActive))
	if err != nil {
		return fmt.Errorf("create session: %w", mapConstraintErr(err))
	}
	return nil
}

// GetSessionByTokenHash returns (nil, nil) when no session matches: an
// unknown token is a normal outcome for the authority, not a storage error.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, device_info, ip_address,
		        created_at, last_activity, expires_at, is_active
		 FROM sessions WHERE token_hash = ?`,
		tokenHash)

	var (
		session core.Session
		active  int
	)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash,
		&session.DeviceInfo, &session.IPAddress,
		&session.CreatedAt, &session.LastActivity, &session.ExpiresAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.IsActive = active != 0
	return &session, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// DeactivateSessionByTokenHash is idempotent: zero affected rows is fine.
func (s *Store) DeactivateSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("deactivate session by token: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
