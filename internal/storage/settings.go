package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashcal/internal/core"
	"cashcal/internal/tenant"
)

func upsertSettings(ctx context.Context, q querier, s core.Settings) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (user_id, start_balance, start_date, currency, week_start)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     start_balance = excluded.start_balance,
		     start_date    = excluded.start_date,
		     currency      = excluded.currency,
		     week_start    = excluded.week_start`,
		s.UserID, s.StartBalance, s.StartDate, s.Currency, string(s.WeekStart))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *userStore) GetSettings(ctx context.Context) (core.Settings, error) {
	settings := core.Settings{UserID: s.userID}
	var weekStart string
	err := s.repo.db.QueryRowContext(ctx,
		`SELECT start_balance, start_date, currency, week_start FROM settings WHERE user_id = ?`,
		s.userID).Scan(&settings.StartBalance, &settings.StartDate, &settings.Currency, &weekStart)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, fmt.Errorf("settings for %s: %w", s.userID, tenant.ErrNotFound)
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings.WeekStart = core.WeekStart(weekStart)
	return settings, nil
}

func (s *userStore) SaveSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	if err := settings.Validate(); err != nil {
		return core.Settings{}, err
	}
	settings.UserID = s.userID
	err := s.repo.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, s.userID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		return upsertSettings(ctx, q, settings)
	})
	if err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}
