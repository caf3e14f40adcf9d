package http

import (
	"log/slog"
	"net/http"
	"time"

	"carteira/internal/core"
	syncpkg "carteira/internal/sync"
)

// pushRequest accepts the collections either flat at the top level or nested
// under "data"; older clients use the nested form.
type pushRequest struct {
	core.UserData
	Data *core.UserData `json:"data,omitempty"`
	Mode string         `json:"mode,omitempty"`
}

func (p pushRequest) batch() core.UserData {
	if p.Data != nil {
		return *p.Data
	}
	return p.UserData
}

// handleSyncPull materializes any due recurring expenses for the user, then
// snapshots the whole dataset. Running the scheduler here means recurring
// expenses appear as soon as a client refreshes, without a background timer.
func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	today := time.Now().UTC()

	fired, err := s.scheduler.ProcessDue(r.Context(), identity.UserID, today)
	if err != nil {
		// Snapshot anyway: stale recurring data beats no data.
		slog.ErrorContext(r.Context(), "Recurring processing failed during pull",
			"user_id", identity.UserID, "error", err)
	}
	if fired > 0 {
		s.summaryCache.Invalidate(identity.UserID)
	}

	result, err := s.syncEng.Pull(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSyncPush applies a client batch. The mode comes from the body or the
// fullReplace query parameter; both spellings mean the same thing.
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req pushRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	mode := syncpkg.Mode(req.Mode)
	if r.URL.Query().Get("fullReplace") == "true" {
		mode = syncpkg.ModeFullReplace
	}

	if err := s.syncEng.Push(r.Context(), identity.UserID, req.batch(), mode); err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Invalidate(identity.UserID)
	s.notifyDataChanged(r, identity.UserID, "sync_push")

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "applied",
		"synced_at": time.Now().UTC(),
	})
}

// notifyDataChanged publishes a change event without affecting the response.
func (s *Server) notifyDataChanged(r *http.Request, userID, source string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDataChanged(r.Context(), userID, source); err != nil {
		slog.WarnContext(r.Context(), "Failed to publish data changed event",
			"user_id", userID, "source", source, "error", err)
	}
}
