package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carteira/internal/core"
)

// DefaultSettings are returned for users who never saved preferences.
func DefaultSettings(userID string) core.UserSettings {
	return core.UserSettings{
		UserID:            userID,
		Tema:              "claro",
		Moeda:             "BRL",
		DiaVencimento:     10,
		NotificacoesAtivo: true,
	}
}

// GetSettings never reports not-found: a missing row yields the defaults.
func (s *Store) GetSettings(ctx context.Context, userID string) (core.UserSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, tema, moeda, dia_vencimento, notificacoes_ativo, updated_at
		 FROM user_settings WHERE user_id = ?`,
		userID)

	var (
		settings core.UserSettings
		ativo    int
	)
	err := row.Scan(&settings.UserID, &settings.Tema, &settings.Moeda,
		&settings.DiaVencimento, &ativo, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(userID), nil
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("scan settings: %w", err)
	}
	settings.NotificacoesAtivo = ativo != 0
	return settings, nil
}

func (s *Store) PutSettings(ctx context.Context, settings core.UserSettings) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return putSettingsTx(ctx, tx, settings)
	})
}

func putSettingsTx(ctx context.Context, tx *sql.Tx, settings core.UserSettings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE user_settings
		 SET tema = ?, moeda = ?, dia_vencimento = ?, notificacoes_ativo = ?, updated_at = ?
		 WHERE user_id = ?`,
		settings.Tema, settings.Moeda, settings.DiaVencimento,
		boolToInt(settings.NotificacoesAtivo), settings.UpdatedAt, settings.UserID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, tema, moeda, dia_vencimento, notificacoes_ativo, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		settings.UserID, settings.Tema, settings.Moeda, settings.DiaVencimento,
		boolToInt(settings.NotificacoesAtivo), settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert settings: %w", mapConstraintErr(err))
	}
	return nil
}
