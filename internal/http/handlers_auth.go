package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"carteira/internal/core"
)

type registerRequest struct {
	Email    string `json:"email"`
	Nome     string `json:"nome"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondError(w, r, fmt.Errorf("%w: invalid email", core.ErrValidation))
		return
	}
	if strings.TrimSpace(req.Nome) == "" {
		respondError(w, r, fmt.Errorf("%w: nome cannot be empty", core.ErrValidation))
		return
	}
	if len(req.Password) < 8 {
		respondError(w, r, fmt.Errorf("%w: password must be at least 8 characters", core.ErrValidation))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Nome:         strings.TrimSpace(req.Nome),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		respondError(w, r, err)
		return
	}

	token, session, err := s.authority.Issue(r.Context(), user.ID, r.UserAgent(), s.clientIP(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user_id", user.ID)
	respondJSON(w, http.StatusCreated, authResponse{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// A wrong email and a wrong password must be indistinguishable.
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, r, fmt.Errorf("%w: invalid credentials", core.ErrAuthentication))
			return
		}
		respondError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid credentials", core.ErrAuthentication))
		return
	}

	token, session, err := s.authority.Issue(r.Context(), user.ID, r.UserAgent(), s.clientIP(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)
	respondJSON(w, http.StatusOK, authResponse{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      *user,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": identity.UserID,
		"session": identity.Session,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw, err := bearerToken(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.authority.Revoke(r.Context(), raw); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
