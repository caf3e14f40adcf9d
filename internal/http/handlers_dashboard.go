package http

import (
	"net/http"
	"time"

	"carteira/internal/core"
)

// handleDashboardSummary aggregates the user's position. Results are cached
// per user and invalidated on every mutation, so the window for stale reads
// is the cache TTL at worst.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	if summary, ok := s.summaryCache.Get(identity.UserID); ok {
		respondJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := s.buildSummary(r, identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.summaryCache.Set(identity.UserID, summary)
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) buildSummary(r *http.Request, userID string) (core.Summary, error) {
	now := time.Now().UTC()

	cartoes, err := s.store.ListCartoes(r.Context(), userID)
	if err != nil {
		return core.Summary{}, err
	}

	var summary core.Summary
	for i := range cartoes {
		c := &cartoes[i]
		summary.TotalEmprestado += c.ValorTotal
		summary.TotalPago += c.ValorPago
		// Overdue detection works on the in-memory schedule; cards without
		// persisted installments are backfilled on the fly.
		summary.ParcelasVencidas += s.ledger.OverdueCount(c, now)
	}
	summary.SaldoAberto = summary.TotalEmprestado - summary.TotalPago

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	summary.GastosMesCorrente, err = s.store.SumGastosInRange(r.Context(), userID, monthStart, monthEnd)
	if err != nil {
		return core.Summary{}, err
	}

	return summary, nil
}
