package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carteira/internal/core"
)

// fakeSessionStore is an in-memory SessionStore for unit tests.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session // keyed by token hash
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*core.Session)}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, s core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[s.TokenHash]; exists {
		return core.ErrConflict
	}
	copied := s
	f.sessions[s.TokenHash] = &copied
	return nil
}

func (f *fakeSessionStore) GetSessionByTokenHash(_ context.Context, hash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[hash]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) TouchSession(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			s.LastActivity = at
		}
	}
	return nil
}

func (f *fakeSessionStore) DeactivateSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeSessionStore) DeactivateSessionByTokenHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[hash]; ok {
		s.IsActive = false
	}
	return nil
}

func newTestAuthority(store SessionStore) *Authority {
	codec := NewTokenCodec("test-secret", 30*time.Minute)
	return NewAuthority(store, codec, 30*time.Minute)
}

func TestAuthority_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	a := newTestAuthority(store)

	token, session, err := a.Issue(ctx, "user-1", "firefox/linux", "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if session.TokenHash == token {
		t.Fatal("raw token stored as hash")
	}
	if session.TokenHash != HashToken(token) {
		t.Fatal("stored hash does not match the issued token")
	}

	id, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", id.UserID)
	}
	if id.Session.ID != session.ID {
		t.Errorf("session id = %q, want %q", id.Session.ID, session.ID)
	}
}

func TestAuthority_ValidateRefreshesActivity(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	a := newTestAuthority(store)

	token, session, err := a.Issue(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := session.LastActivity.Add(5 * time.Minute)
	a.now = func() time.Time { return later }

	id, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !id.Session.LastActivity.Equal(later) {
		t.Errorf("LastActivity = %v, want %v", id.Session.LastActivity, later)
	}
}

func TestAuthority_AcceptsSelfExpiredTokenWithActiveSession(t *testing.T) {
	// The token's own expiry claim elapsed, but the session row is active
	// with expires_at in the future. The row wins: accept.
	ctx := context.Background()
	store := newFakeSessionStore()

	codec := NewTokenCodec("test-secret", time.Minute)
	a := NewAuthority(store, codec, 30*time.Minute)

	issuedAt := time.Now().Add(-10 * time.Minute)
	a.now = func() time.Time { return issuedAt }
	token, _, err := a.Issue(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Back to real time: claim expired 9 minutes ago, session has 20 left.
	a.now = time.Now
	id, err := a.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate rejected a token backed by an active session: %v", err)
	}
	if id.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", id.UserID)
	}
}

func TestAuthority_RejectsTokenWithoutSessionRow(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthority(newFakeSessionStore())

	// Validly signed token that was never issued through the store.
	codec := NewTokenCodec("test-secret", 30*time.Minute)
	token, err := codec.Sign("user-1", "ghost-session", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := a.Validate(ctx, token); !errors.Is(err, core.ErrSession) {
		t.Errorf("Validate error = %v, want ErrSession", err)
	}
}

func TestAuthority_RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthority(newFakeSessionStore())

	other := NewTokenCodec("a-different-secret", 30*time.Minute)
	token, err := other.Sign("user-1", "session-1", time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := a.Validate(ctx, token); !errors.Is(err, core.ErrAuthentication) {
		t.Errorf("Validate error = %v, want ErrAuthentication", err)
	}
	if _, err := a.Validate(ctx, "not-even-a-token"); !errors.Is(err, core.ErrAuthentication) {
		t.Errorf("Validate error = %v, want ErrAuthentication", err)
	}
}

func TestAuthority_RejectsExpiredSessionRow(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	a := newTestAuthority(store)

	token, session, err := a.Issue(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	a.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }
	if _, err := a.Validate(ctx, token); !errors.Is(err, core.ErrSession) {
		t.Fatalf("Validate error = %v, want ErrSession", err)
	}

	// Expired is terminal: the row was deactivated and stays rejected even
	// if the clock moved back.
	a.now = time.Now
	if _, err := a.Validate(ctx, token); !errors.Is(err, core.ErrSession) {
		t.Errorf("Validate after lazy deactivation = %v, want ErrSession", err)
	}
}

func TestAuthority_LogoutThenValidate(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	a := newTestAuthority(store)

	token, _, err := a.Issue(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := a.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := a.Validate(ctx, token); !errors.Is(err, core.ErrSession) {
		t.Errorf("Validate after revoke = %v, want ErrSession", err)
	}

	// Revoke is idempotent.
	if err := a.Revoke(ctx, token); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
	if err := a.Revoke(ctx, "unknown-token"); err != nil {
		t.Errorf("Revoke of unknown token: %v", err)
	}
}

func TestTokenCodec_DecodeExpired(t *testing.T) {
	codec := NewTokenCodec("s", time.Minute)
	token, err := codec.Sign("u", "s1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, expired, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !expired {
		t.Error("expired = false for a token signed an hour ago with 1m TTL")
	}
	if claims.UserID != "u" || claims.SessionID != "s1" {
		t.Errorf("claims = %+v", claims)
	}
}
