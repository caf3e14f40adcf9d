// Package auth implements the session authority: it issues, validates, and
// revokes authenticated sessions, and is the single source of truth for
// whether a bearer token is still good. Token acceptance combines two
// independent facts with a logical AND: the token must decode (signature
// intact, expiry claim allowed to have elapsed) AND a matching session row
// must be active and unexpired.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
)

// SessionStore is the persistence dependency of the Authority.
type SessionStore interface {
	CreateSession(ctx context.Context, s core.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*core.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeactivateSession(ctx context.Context, id string) error
	DeactivateSessionByTokenHash(ctx context.Context, tokenHash string) error
}

// Identity is the result of a successful validation.
type Identity struct {
	UserID  string
	Session core.Session
}

// Authority issues and validates sessions against a SessionStore. It is a
// plain service object constructed with its dependencies; there is no
// package-level state.
type Authority struct {
	store SessionStore
	codec *TokenCodec
	ttl   time.Duration
	now   func() time.Time
}

func NewAuthority(store SessionStore, codec *TokenCodec, ttl time.Duration) *Authority {
	return &Authority{
		store: store,
		codec: codec,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Issue creates a session for the user and returns the signed bearer token
// along with the stored session. The raw token is hashed before storage and
// the session expiry is fixed at creation time.
func (a *Authority) Issue(ctx context.Context, userID, deviceInfo, ip string) (string, core.Session, error) {
	now := a.now()
	sessionID := uuid.NewString()

	token, err := a.codec.Sign(userID, sessionID, now)
	if err != nil {
		return "", core.Session{}, fmt.Errorf("sign token: %w", err)
	}

	session := core.Session{
		ID:           sessionID,
		UserID:       userID,
		TokenHash:    HashToken(token),
		DeviceInfo:   deviceInfo,
		IPAddress:    ip,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(a.ttl),
		IsActive:     true,
	}
	if err := a.store.CreateSession(ctx, session); err != nil {
		return "", core.Session{}, fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "Session issued",
		"session_id", sessionID,
		"user_id", userID,
		"expires_at", session.ExpiresAt.Format(time.RFC3339))

	return token, session, nil
}

// Validate checks a raw bearer token against the session table. The token's
// own expiry claim is decoded but never trusted: only the session row's
// is_active and expires_at gate the decision. Acceptance refreshes the
// row's last_activity; a row found expired is lazily deactivated.
func (a *Authority) Validate(ctx context.Context, raw string) (*Identity, error) {
	claims, selfExpired, err := a.codec.Decode(raw)
	if err != nil {
		return nil, err
	}

	session, err := a.store.GetSessionByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: no session for token", core.ErrSession)
	}
	if !session.IsActive {
		return nil, fmt.Errorf("%w: session revoked", core.ErrSession)
	}

	now := a.now()
	if !now.Before(session.ExpiresAt) {
		// Terminal transition, detected lazily on validation.
		if derr := a.store.DeactivateSession(ctx, session.ID); derr != nil {
			slog.WarnContext(ctx, "Failed to deactivate expired session",
				"session_id", session.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: session expired", core.ErrSession)
	}

	if selfExpired {
		slog.DebugContext(ctx, "Accepted token past its own expiry claim",
			"session_id", session.ID)
	}

	// last_activity updates may race across devices; last write wins.
	if terr := a.store.TouchSession(ctx, session.ID, now); terr != nil {
		slog.WarnContext(ctx, "Failed to refresh session activity",
			"session_id", session.ID, "error", terr)
	} else {
		session.LastActivity = now
	}

	return &Identity{UserID: session.UserID, Session: *session}, nil
}

// Revoke deactivates the session behind a raw token. It is idempotent:
// revoking an unknown or already revoked token is not an error.
func (a *Authority) Revoke(ctx context.Context, raw string) error {
	if err := a.store.DeactivateSessionByTokenHash(ctx, HashToken(raw)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
