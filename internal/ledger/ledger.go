// Package ledger implements the pure state-machine logic over a Cartao and
// its Parcelas: pay/unpay transitions, derived totals, overdue detection,
// and deterministic installment backfill. Persistence is the caller's
// concern; every mutation here happens on in-memory values so the storage
// layer can apply them inside a single transaction.
package ledger

import (
	"fmt"
	"time"

	"carteira/internal/core"
)

// Engine holds the schedule policy for backfilled installments.
type Engine struct {
	// DueDay is the target day-of-month for backfilled due dates, clamped
	// to the last day of shorter months. Zero means "same day as the
	// purchase date".
	DueDay int
}

// InstallmentAmount returns the fixed per-installment value of a card.
func InstallmentAmount(c *core.Cartao) float64 {
	return c.ValorTotal / float64(c.ParcelasTotais)
}

// recompute derives ValorPago from the invariant formula. It deliberately
// never adds or subtracts the per-installment amount from the previous
// value, so repeated pay/unpay cycles cannot accumulate float drift.
func recompute(c *core.Cartao) {
	c.ValorPago = InstallmentAmount(c) * float64(c.ParcelasPagas)
}

// findParcela locates installment n in the card's schedule. Schedules that
// arrive from clients are not guaranteed to be dense, so installments are
// addressed by Numero, never by slice position.
func findParcela(c *core.Cartao, n int) *core.Parcela {
	for i := range c.Parcelas {
		if c.Parcelas[i].Numero == n {
			return &c.Parcelas[i]
		}
	}
	return nil
}

// Pay marks installment n as paid at the given time, increments
// ParcelasPagas, and recomputes ValorPago. Cards without a materialized
// schedule are backfilled first.
func (e Engine) Pay(c *core.Cartao, n int, now time.Time) error {
	if n < 1 || n > c.ParcelasTotais {
		return fmt.Errorf("%w: installment number %d out of range [1, %d]", core.ErrValidation, n, c.ParcelasTotais)
	}
	e.Backfill(c)

	p := findParcela(c, n)
	if p == nil {
		return fmt.Errorf("%w: installment %d is not in the schedule", core.ErrValidation, n)
	}
	if p.Paga {
		return fmt.Errorf("%w: installment %d is already paid", core.ErrValidation, n)
	}

	paid := now
	p.Paga = true
	p.DataPagamento = &paid
	c.ParcelasPagas++
	recompute(c)
	c.UpdatedAt = now
	return nil
}

// Unpay reverses a previous payment of installment n via the same
// recomputation rule.
func (e Engine) Unpay(c *core.Cartao, n int, now time.Time) error {
	if n < 1 || n > c.ParcelasTotais {
		return fmt.Errorf("%w: installment number %d out of range [1, %d]", core.ErrValidation, n, c.ParcelasTotais)
	}
	if c.ParcelasPagas == 0 {
		return fmt.Errorf("%w: card has no paid installments", core.ErrValidation)
	}
	e.Backfill(c)

	p := findParcela(c, n)
	if p == nil {
		return fmt.Errorf("%w: installment %d is not in the schedule", core.ErrValidation, n)
	}
	if !p.Paga {
		return fmt.Errorf("%w: installment %d is not paid", core.ErrValidation, n)
	}

	p.Paga = false
	p.DataPagamento = nil
	c.ParcelasPagas--
	recompute(c)
	c.UpdatedAt = now
	return nil
}

// NextDue returns the lowest-numbered unpaid installment, or false when the
// card is fully paid.
func (e Engine) NextDue(c *core.Cartao) (core.Parcela, bool) {
	e.Backfill(c)
	for _, p := range c.Parcelas {
		if !p.Paga {
			return p, true
		}
	}
	return core.Parcela{}, false
}

// OverdueCount counts unpaid installments whose due date has passed.
func (e Engine) OverdueCount(c *core.Cartao, now time.Time) int {
	e.Backfill(c)
	count := 0
	for _, p := range c.Parcelas {
		if !p.Paga && p.Vencimento.Before(now) {
			count++
		}
	}
	return count
}

// Backfill synthesizes the ParcelasTotais installment rows for a card that
// has none: amount = ValorTotal/ParcelasTotais, due date = DataCompra
// advanced by (n-1) months clamped to the configured day-of-month, paid for
// n <= ParcelasPagas. It is idempotent: the same card state always produces
// the same schedule, and a card with existing installments is untouched.
func (e Engine) Backfill(c *core.Cartao) []core.Parcela {
	if len(c.Parcelas) > 0 {
		return c.Parcelas
	}

	dueDay := e.DueDay
	if dueDay <= 0 {
		dueDay = c.DataCompra.Day()
	}

	amount := InstallmentAmount(c)
	parcelas := make([]core.Parcela, 0, c.ParcelasTotais)
	for n := 1; n <= c.ParcelasTotais; n++ {
		parcelas = append(parcelas, core.Parcela{
			CartaoID:   c.ID,
			Numero:     n,
			Valor:      amount,
			Vencimento: addMonthsClamped(c.DataCompra, n-1, dueDay),
			Paga:       n <= c.ParcelasPagas,
		})
	}
	c.Parcelas = parcelas
	return c.Parcelas
}

// addMonthsClamped advances base by the given number of months and pins the
// result to day-of-month, clamped to the last day of the target month
// (e.g. day 31 in February becomes the 28th or 29th). It avoids time.Date's
// day normalization, which would otherwise roll Jan 31 + 1 month into March.
func addMonthsClamped(base time.Time, months, day int) time.Time {
	m0 := int(base.Month()) + months
	year := base.Year() + (m0-1)/12
	month := time.Month((m0-1)%12 + 1)

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
