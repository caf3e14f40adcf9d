// Package recurrence evaluates recurring-expense definitions against a
// reference date and materializes due Gasto records. It runs once per
// client data-refresh cycle, not from a persistent timer.
package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
)

// Thresholds in days between executions, per frequency.
var intervalDays = map[core.Frequencia]int{
	core.Semanal: 7,
	core.Mensal:  30,
	core.Anual:   365,
}

// Store is the persistence dependency of the Scheduler.
type Store interface {
	ListRecorrenciasAtivas(ctx context.Context, ownerID string) ([]core.Recorrencia, error)

	// MaterializeRecorrencia inserts the gasto and stamps the definition's
	// ultima_execucao in a single transaction.
	MaterializeRecorrencia(ctx context.Context, recorrenciaID string, gasto core.Gasto, executedAt time.Time) error
}

// Scheduler materializes due recurring expenses.
type Scheduler struct {
	store Store
}

func NewScheduler(store Store) *Scheduler {
	return &Scheduler{store: store}
}

// ShouldFire reports whether a definition is due on the given date: the
// definition must be active and either never executed (with data_inicio
// reached) or past its frequency interval. A definition that already fired
// on the same calendar day never fires again that day, so repeated
// data refreshes cannot produce duplicate expenses.
func ShouldFire(def core.Recorrencia, today time.Time) (bool, error) {
	if !def.Ativo {
		return false, nil
	}

	if def.UltimaExecucao == nil {
		return !def.DataInicio.After(today), nil
	}

	if sameDay(*def.UltimaExecucao, today) {
		return false, nil
	}

	days, ok := intervalDays[def.Frequencia]
	if !ok {
		return false, fmt.Errorf("%w: unknown frequencia %q", core.ErrValidation, def.Frequencia)
	}

	elapsed := today.Sub(*def.UltimaExecucao).Hours() / 24
	return elapsed >= float64(days), nil
}

// Materialize creates one Gasto from the definition, tagged with
// recorrente_id, and advances ultima_execucao to today.
func (s *Scheduler) Materialize(ctx context.Context, def core.Recorrencia, today time.Time) (core.Gasto, error) {
	gasto := core.Gasto{
		ID:              uuid.NewString(),
		OwnerID:         def.OwnerID,
		Valor:           def.Valor,
		Data:            today,
		Categoria:       def.Categoria,
		MetodoPagamento: def.MetodoPagamento,
		RecorrenteID:    &def.ID,
		CreatedAt:       today,
		UpdatedAt:       today,
	}
	if err := s.store.MaterializeRecorrencia(ctx, def.ID, gasto, today); err != nil {
		return core.Gasto{}, fmt.Errorf("materialize recorrencia %s: %w", def.ID, err)
	}
	return gasto, nil
}

// ProcessDue walks a user's active definitions and materializes every one
// that is due, returning how many fired. A failure on one definition is
// logged and does not stop the others.
func (s *Scheduler) ProcessDue(ctx context.Context, ownerID string, today time.Time) (int, error) {
	defs, err := s.store.ListRecorrenciasAtivas(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list active recorrencias: %w", err)
	}

	processed := 0
	for _, def := range defs {
		due, err := ShouldFire(def, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to evaluate recorrencia",
				"recorrencia_id", def.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		gasto, err := s.Materialize(ctx, def, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recorrencia",
				"recorrencia_id", def.ID, "error", err)
			continue
		}

		processed++
		slog.InfoContext(ctx, "Materialized recurring expense",
			"recorrencia_id", def.ID,
			"gasto_id", gasto.ID,
			"valor", def.Valor,
			"frequencia", def.Frequencia)
	}

	if processed > 0 {
		slog.InfoContext(ctx, "Recurring expense processing complete",
			"processed", processed,
			"total_checked", len(defs))
	}
	return processed, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
