package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"carteira/internal/core"
)

const epsilon = 1e-9

func newCard(total float64, parcelas int) *core.Cartao {
	return &core.Cartao{
		ID:             "card-1",
		OwnerID:        "user-1",
		PessoaID:       "pessoa-1",
		Descricao:      "notebook",
		ValorTotal:     total,
		ParcelasTotais: parcelas,
		DataCompra:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestEngine_Pay(t *testing.T) {
	e := Engine{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("paying installments 1-3 of 1200/12 yields 300 paid", func(t *testing.T) {
		c := newCard(1200.00, 12)
		for n := 1; n <= 3; n++ {
			if err := e.Pay(c, n, now); err != nil {
				t.Fatalf("Pay(%d) returned error: %v", n, err)
			}
		}
		if c.ParcelasPagas != 3 {
			t.Errorf("ParcelasPagas = %d, want 3", c.ParcelasPagas)
		}
		if math.Abs(c.ValorPago-300.00) > epsilon {
			t.Errorf("ValorPago = %v, want 300.00", c.ValorPago)
		}
		if math.Abs(InstallmentAmount(c)-100.00) > epsilon {
			t.Errorf("InstallmentAmount = %v, want 100.00", InstallmentAmount(c))
		}
	})

	t.Run("double pay fails", func(t *testing.T) {
		c := newCard(1200.00, 12)
		if err := e.Pay(c, 5, now); err != nil {
			t.Fatalf("first Pay: %v", err)
		}
		if err := e.Pay(c, 5, now); !errors.Is(err, core.ErrValidation) {
			t.Errorf("second Pay error = %v, want ErrValidation", err)
		}
	})

	t.Run("out of range fails", func(t *testing.T) {
		c := newCard(1200.00, 12)
		for _, n := range []int{0, -1, 13} {
			if err := e.Pay(c, n, now); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Pay(%d) error = %v, want ErrValidation", n, err)
			}
		}
	})
}

func TestEngine_Unpay(t *testing.T) {
	e := Engine{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pay then unpay restores prior state", func(t *testing.T) {
		c := newCard(999.99, 7)
		if err := e.Pay(c, 2, now); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if err := e.Pay(c, 4, now); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		before := *c
		if err := e.Pay(c, 1, now); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if err := e.Unpay(c, 1, now); err != nil {
			t.Fatalf("Unpay: %v", err)
		}
		if c.ParcelasPagas != before.ParcelasPagas {
			t.Errorf("ParcelasPagas = %d, want %d", c.ParcelasPagas, before.ParcelasPagas)
		}
		if math.Abs(c.ValorPago-before.ValorPago) > epsilon {
			t.Errorf("ValorPago = %v, want %v", c.ValorPago, before.ValorPago)
		}
		if c.Parcelas[0].Paga {
			t.Error("installment 1 still marked paid after unpay")
		}
		if c.Parcelas[0].DataPagamento != nil {
			t.Error("installment 1 kept its payment date after unpay")
		}
	})

	t.Run("unpay unpaid installment fails", func(t *testing.T) {
		c := newCard(100, 2)
		if err := e.Pay(c, 1, now); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if err := e.Unpay(c, 2, now); !errors.Is(err, core.ErrValidation) {
			t.Errorf("Unpay error = %v, want ErrValidation", err)
		}
	})

	t.Run("unpay with zero paid fails", func(t *testing.T) {
		c := newCard(100, 2)
		if err := e.Unpay(c, 1, now); !errors.Is(err, core.ErrValidation) {
			t.Errorf("Unpay error = %v, want ErrValidation", err)
		}
	})
}

func TestEngine_SparseSchedule(t *testing.T) {
	// Schedules arriving from clients can hold fewer rows than
	// ParcelasTotais. Missing numbers must come back as validation errors,
	// never as index panics.
	e := Engine{}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := newCard(1200, 12)
	c.Parcelas = []core.Parcela{{
		CartaoID:   c.ID,
		Numero:     12,
		Valor:      100,
		Vencimento: time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
	}}

	if err := e.Pay(c, 5, now); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Pay(5) error = %v, want ErrValidation", err)
	}

	if err := e.Pay(c, 12, now); err != nil {
		t.Fatalf("Pay(12): %v", err)
	}
	if c.ParcelasPagas != 1 {
		t.Errorf("ParcelasPagas = %d, want 1", c.ParcelasPagas)
	}
	if math.Abs(c.ValorPago-100.00) > epsilon {
		t.Errorf("ValorPago = %v, want 100.00", c.ValorPago)
	}

	if err := e.Unpay(c, 5, now); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Unpay(5) error = %v, want ErrValidation", err)
	}
	if err := e.Unpay(c, 12, now); err != nil {
		t.Fatalf("Unpay(12): %v", err)
	}
}

func TestEngine_InvariantUnderMixedSequence(t *testing.T) {
	e := Engine{}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := newCard(1000.0/3.0, 3) // deliberately non-terminating decimal

	steps := []struct {
		op string
		n  int
	}{
		{"pay", 1}, {"pay", 2}, {"unpay", 1}, {"pay", 3},
		{"pay", 1}, {"unpay", 2}, {"unpay", 3}, {"pay", 2},
	}
	for i, s := range steps {
		var err error
		if s.op == "pay" {
			err = e.Pay(c, s.n, now)
		} else {
			err = e.Unpay(c, s.n, now)
		}
		if err != nil {
			t.Fatalf("step %d (%s %d): %v", i, s.op, s.n, err)
		}

		want := c.ValorTotal / float64(c.ParcelasTotais) * float64(c.ParcelasPagas)
		if math.Abs(c.ValorPago-want) > epsilon {
			t.Fatalf("step %d: ValorPago = %v, want %v", i, c.ValorPago, want)
		}
		if c.ParcelasPagas < 0 || c.ParcelasPagas > c.ParcelasTotais {
			t.Fatalf("step %d: ParcelasPagas = %d out of range", i, c.ParcelasPagas)
		}
	}
}

func TestEngine_NextDueAndOverdue(t *testing.T) {
	e := Engine{DueDay: 10}
	now := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	c := newCard(300, 3) // due 2024-01-10, 2024-02-10, 2024-03-10 with DueDay=10

	next, ok := e.NextDue(c)
	if !ok || next.Numero != 1 {
		t.Fatalf("NextDue = (%v, %v), want installment 1", next.Numero, ok)
	}

	if err := e.Pay(c, 1, now); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	next, ok = e.NextDue(c)
	if !ok || next.Numero != 2 {
		t.Fatalf("NextDue after paying 1 = (%v, %v), want installment 2", next.Numero, ok)
	}

	if got := e.OverdueCount(c, now); got != 2 {
		t.Errorf("OverdueCount = %d, want 2", got)
	}

	if err := e.Pay(c, 2, now); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if err := e.Pay(c, 3, now); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if _, ok := e.NextDue(c); ok {
		t.Error("NextDue on fully paid card reported an unpaid installment")
	}
	if got := e.OverdueCount(c, now); got != 0 {
		t.Errorf("OverdueCount on fully paid card = %d, want 0", got)
	}
}

func TestEngine_Backfill(t *testing.T) {
	tests := []struct {
		name       string
		dueDay     int
		dataCompra time.Time
		parcelas   int
		pagas      int
		wantDates  []time.Time
	}{
		{
			name:       "clamps day 31 to end of february",
			dueDay:     31,
			dataCompra: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			parcelas:   3,
			wantDates: []time.Time{
				time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "zero due day uses purchase day",
			dueDay:     0,
			dataCompra: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
			parcelas:   3,
			wantDates: []time.Time{
				time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "marks first n installments paid",
			dueDay:     15,
			dataCompra: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			parcelas:   4,
			pagas:      2,
			wantDates: []time.Time{
				time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Engine{DueDay: tt.dueDay}
			c := newCard(120, tt.parcelas)
			c.DataCompra = tt.dataCompra
			c.ParcelasPagas = tt.pagas

			got := e.Backfill(c)
			if len(got) != tt.parcelas {
				t.Fatalf("Backfill produced %d installments, want %d", len(got), tt.parcelas)
			}
			for i, p := range got {
				if p.Numero != i+1 {
					t.Errorf("installment %d has Numero %d", i, p.Numero)
				}
				if !p.Vencimento.Equal(tt.wantDates[i]) {
					t.Errorf("installment %d due %v, want %v", p.Numero, p.Vencimento, tt.wantDates[i])
				}
				wantPaga := p.Numero <= tt.pagas
				if p.Paga != wantPaga {
					t.Errorf("installment %d Paga = %v, want %v", p.Numero, p.Paga, wantPaga)
				}
				if math.Abs(p.Valor-120.0/float64(tt.parcelas)) > epsilon {
					t.Errorf("installment %d Valor = %v", p.Numero, p.Valor)
				}
			}
		})
	}
}

func TestEngine_BackfillIsIdempotent(t *testing.T) {
	e := Engine{DueDay: 10}
	c := newCard(600, 6)

	first := e.Backfill(c)
	second := e.Backfill(c)
	if len(first) != len(second) {
		t.Fatalf("second backfill changed installment count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Vencimento.Equal(second[i].Vencimento) || first[i].Paga != second[i].Paga {
			t.Errorf("installment %d changed across backfills", i+1)
		}
	}

	// Same card state rebuilt from scratch must give the same schedule.
	fresh := newCard(600, 6)
	rebuilt := e.Backfill(fresh)
	for i := range first {
		if !first[i].Vencimento.Equal(rebuilt[i].Vencimento) {
			t.Errorf("installment %d not deterministic: %v vs %v", i+1, first[i].Vencimento, rebuilt[i].Vencimento)
		}
	}
}
