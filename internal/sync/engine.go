// Package sync implements the bidirectional data exchange with offline
// clients: push applies a client batch, pull hands back the server's view.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carteira/internal/core"
)

// Mode selects how a pushed batch is applied.
type Mode string

const (
	// ModeMerge upserts pushed records and keeps everything else.
	ModeMerge Mode = "merge"
	// ModeFullReplace swaps the user's entire dataset for the batch.
	ModeFullReplace Mode = "fullReplace"
)

// Store is the persistence surface the engine needs. Both apply methods run
// their whole batch in one transaction.
type Store interface {
	ApplySyncMerge(ctx context.Context, ownerID string, data core.UserData) error
	ApplySyncReplace(ctx context.Context, ownerID string, data core.UserData) error
	SnapshotUserData(ctx context.Context, ownerID string) (core.UserData, error)
}

type Engine struct {
	store  Store
	logger *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// PullResult is the payload of a pull: the full dataset plus the server
// timestamp the client should record as its last sync point.
type PullResult struct {
	Data     core.UserData `json:"data"`
	SyncedAt time.Time     `json:"synced_at"`
}

// Push validates and applies a client batch under the given mode. Validation
// happens before anything touches the database, so a bad record rejects the
// whole batch.
func (e *Engine) Push(ctx context.Context, ownerID string, data core.UserData, mode Mode) error {
	if err := validateBatch(data); err != nil {
		return err
	}

	var err error
	switch mode {
	case ModeFullReplace:
		err = e.store.ApplySyncReplace(ctx, ownerID, data)
	case ModeMerge, "":
		err = e.store.ApplySyncMerge(ctx, ownerID, data)
	default:
		return fmt.Errorf("%w: unknown sync mode %q", core.ErrValidation, mode)
	}
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "sync batch applied",
		slog.String("user_id", ownerID),
		slog.String("mode", string(mode)),
		slog.Int("pessoas", len(data.Pessoas)),
		slog.Int("cartoes", len(data.Cartoes)),
		slog.Int("gastos", len(data.Gastos)),
		slog.Int("recorrencias", len(data.Recorrencias)))
	return nil
}

// Pull snapshots the user's dataset.
func (e *Engine) Pull(ctx context.Context, ownerID string) (PullResult, error) {
	data, err := e.store.SnapshotUserData(ctx, ownerID)
	if err != nil {
		return PullResult{}, err
	}
	return PullResult{Data: data, SyncedAt: time.Now().UTC()}, nil
}

func validateBatch(data core.UserData) error {
	for _, p := range data.Pessoas {
		if p.ID == "" {
			return fmt.Errorf("%w: pessoa without id", core.ErrValidation)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pessoa %s: %w", p.ID, err)
		}
	}
	for _, c := range data.Cartoes {
		if c.ID == "" {
			return fmt.Errorf("%w: cartao without id", core.ErrValidation)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("cartao %s: %w", c.ID, err)
		}
		for _, p := range c.Parcelas {
			if p.Numero < 1 || p.Numero > c.ParcelasTotais {
				return fmt.Errorf("%w: cartao %s: parcela numero %d out of range [1, %d]",
					core.ErrValidation, c.ID, p.Numero, c.ParcelasTotais)
			}
		}
	}
	for _, g := range data.Gastos {
		if g.ID == "" {
			return fmt.Errorf("%w: gasto without id", core.ErrValidation)
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("gasto %s: %w", g.ID, err)
		}
	}
	for _, r := range data.Recorrencias {
		if r.ID == "" {
			return fmt.Errorf("%w: recorrencia without id", core.ErrValidation)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("recorrencia %s: %w", r.ID, err)
		}
	}
	return nil
}
