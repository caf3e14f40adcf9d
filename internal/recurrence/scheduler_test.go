package recurrence

import (
	"context"
	"testing"
	"time"

	"carteira/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestShouldFire(t *testing.T) {
	tests := []struct {
		name  string
		def   core.Recorrencia
		today time.Time
		want  bool
	}{
		{
			name: "inactive never fires",
			def: core.Recorrencia{
				Ativo:      false,
				Frequencia: core.Mensal,
				DataInicio: date(2024, 1, 1),
			},
			today: date(2024, 6, 1),
			want:  false,
		},
		{
			name: "never executed with start date reached",
			def: core.Recorrencia{
				Ativo:      true,
				Frequencia: core.Mensal,
				DataInicio: date(2024, 1, 1),
			},
			today: date(2024, 1, 1),
			want:  true,
		},
		{
			name: "never executed before start date",
			def: core.Recorrencia{
				Ativo:      true,
				Frequencia: core.Mensal,
				DataInicio: date(2024, 3, 1),
			},
			today: date(2024, 2, 15),
			want:  false,
		},
		{
			name: "monthly 19 days after execution",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Mensal,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 1)),
			},
			today: date(2024, 1, 20),
			want:  false,
		},
		{
			name: "monthly 35 days after execution",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Mensal,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 1)),
			},
			today: date(2024, 2, 5),
			want:  true,
		},
		{
			name: "weekly exactly 7 days",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Semanal,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 8)),
			},
			today: date(2024, 1, 15),
			want:  true,
		},
		{
			name: "weekly 6 days",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Semanal,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 8)),
			},
			today: date(2024, 1, 14),
			want:  false,
		},
		{
			name: "yearly 364 days",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Anual,
				DataInicio:     date(2023, 1, 1),
				UltimaExecucao: ptr(date(2023, 1, 2)),
			},
			today: date(2024, 1, 1),
			want:  false,
		},
		{
			name: "yearly 365 days",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Anual,
				DataInicio:     date(2023, 1, 1),
				UltimaExecucao: ptr(date(2023, 1, 1)),
			},
			today: date(2024, 1, 1),
			want:  true,
		},
		{
			name: "same day execution never repeats",
			def: core.Recorrencia{
				Ativo:          true,
				Frequencia:     core.Semanal,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 15).Add(2 * time.Hour)),
			},
			today: date(2024, 1, 15).Add(23 * time.Hour),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldFire(tt.def, tt.today)
			if err != nil {
				t.Fatalf("ShouldFire: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldFire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldFire_UnknownFrequencia(t *testing.T) {
	def := core.Recorrencia{
		Ativo:          true,
		Frequencia:     "Quinzenal",
		DataInicio:     date(2024, 1, 1),
		UltimaExecucao: ptr(date(2024, 1, 1)),
	}
	if _, err := ShouldFire(def, date(2024, 6, 1)); err == nil {
		t.Error("ShouldFire accepted an unknown frequencia")
	}
}

// fakeStore records materializations in memory.
type fakeStore struct {
	defs     []core.Recorrencia
	gastos   []core.Gasto
	executed map[string]time.Time
}

func (f *fakeStore) ListRecorrenciasAtivas(_ context.Context, ownerID string) ([]core.Recorrencia, error) {
	var out []core.Recorrencia
	for _, d := range f.defs {
		if d.OwnerID == ownerID && d.Ativo {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) MaterializeRecorrencia(_ context.Context, id string, gasto core.Gasto, executedAt time.Time) error {
	f.gastos = append(f.gastos, gasto)
	if f.executed == nil {
		f.executed = make(map[string]time.Time)
	}
	f.executed[id] = executedAt
	for i := range f.defs {
		if f.defs[i].ID == id {
			at := executedAt
			f.defs[i].UltimaExecucao = &at
		}
	}
	return nil
}

func TestScheduler_ProcessDue(t *testing.T) {
	today := date(2024, 2, 5)
	store := &fakeStore{
		defs: []core.Recorrencia{
			{
				ID: "rec-1", OwnerID: "user-1", Valor: 49.90, Categoria: "Streaming",
				Frequencia: core.Mensal, Ativo: true,
				DataInicio:     date(2024, 1, 1),
				UltimaExecucao: ptr(date(2024, 1, 1)),
			},
			{
				ID: "rec-2", OwnerID: "user-1", Valor: 120, Categoria: "Academia",
				Frequencia: core.Mensal, Ativo: true,
				DataInicio:     date(2024, 1, 20),
				UltimaExecucao: ptr(date(2024, 1, 20)),
			},
			{
				ID: "rec-3", OwnerID: "user-2", Valor: 10, Categoria: "Outro",
				Frequencia: core.Mensal, Ativo: true,
				DataInicio: date(2024, 1, 1),
			},
		},
	}
	s := NewScheduler(store)

	processed, err := s.ProcessDue(context.Background(), "user-1", today)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1 (only rec-1 is past its interval)", processed)
	}
	if len(store.gastos) != 1 {
		t.Fatalf("gastos = %d, want 1", len(store.gastos))
	}

	g := store.gastos[0]
	if g.RecorrenteID == nil || *g.RecorrenteID != "rec-1" {
		t.Errorf("gasto not tagged with recorrente_id rec-1: %+v", g.RecorrenteID)
	}
	if g.Valor != 49.90 || g.Categoria != "Streaming" {
		t.Errorf("gasto fields not copied from definition: %+v", g)
	}
	if !store.executed["rec-1"].Equal(today) {
		t.Errorf("ultima_execucao = %v, want %v", store.executed["rec-1"], today)
	}

	// A second refresh on the same day materializes nothing.
	processed, err = s.ProcessDue(context.Background(), "user-1", today)
	if err != nil {
		t.Fatalf("second ProcessDue: %v", err)
	}
	if processed != 0 {
		t.Errorf("second same-day run processed %d, want 0", processed)
	}
	if len(store.gastos) != 1 {
		t.Errorf("duplicate gasto materialized on same-day refresh")
	}
}
