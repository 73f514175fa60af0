package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashcal/internal/core"
)

const scheduleColumns = `id, category_id, description, amount, frequency, repeat_interval, day_of_month, start_date, end_date`

func (s *userStore) scanSchedule(row rowScanner) (core.ScheduleRule, error) {
	r := core.ScheduleRule{UserID: s.userID}
	var (
		category   sql.NullInt64
		dayOfMonth sql.NullInt64
		frequency  string
	)
	if err := row.Scan(&r.ID, &category, &r.Description, &r.Amount, &frequency,
		&r.Interval, &dayOfMonth, &r.StartDate, &r.EndDate); err != nil {
		return core.ScheduleRule{}, err
	}
	r.CategoryID = idPtr(category)
	r.Frequency = core.Frequency(frequency)
	if dayOfMonth.Valid {
		r.DayOfMonth = int(dayOfMonth.Int64)
	}
	return r, nil
}

func nullDay(day int) sql.NullInt64 {
	if day == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(day), Valid: true}
}

func (s *userStore) ListSchedules(ctx context.Context) ([]core.ScheduleRule, error) {
	rows, err := s.repo.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE user_id = ? ORDER BY id`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	out := []core.ScheduleRule{}
	for rows.Next() {
		r, err := s.scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *userStore) GetSchedule(ctx context.Context, id int64) (core.ScheduleRule, error) {
	row := s.repo.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ? AND user_id = ?`, id, s.userID)
	r, err := s.scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ScheduleRule{}, notFound("schedule", id)
	}
	if err != nil {
		return core.ScheduleRule{}, fmt.Errorf("get schedule %d: %w", id, err)
	}
	return r, nil
}

func (s *userStore) CreateSchedule(ctx context.Context, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	if err := r.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}
	err := s.repo.withTx(ctx, func(q querier) error {
		if err := s.checkRef(ctx, q, "categories", "category", r.CategoryID); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx,
			`INSERT INTO schedules (user_id, category_id, description, amount, frequency, repeat_interval, day_of_month, start_date, end_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.userID, nullID(r.CategoryID), r.Description, r.Amount, string(r.Frequency),
			r.Interval, nullDay(r.DayOfMonth), r.StartDate, r.EndDate)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.ScheduleRule{}, err
	}
	r.UserID = s.userID
	return r, nil
}

func (s *userStore) UpdateSchedule(ctx context.Context, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	if err := r.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}
	err := s.repo.withTx(ctx, func(q querier) error {
		ok, err := s.owns(ctx, q, "schedules", r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("schedule", r.ID)
		}
		if err := s.checkRef(ctx, q, "categories", "category", r.CategoryID); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`UPDATE schedules
			 SET category_id = ?, description = ?, amount = ?, frequency = ?, repeat_interval = ?,
			     day_of_month = ?, start_date = ?, end_date = ?
			 WHERE id = ? AND user_id = ?`,
			nullID(r.CategoryID), r.Description, r.Amount, string(r.Frequency), r.Interval,
			nullDay(r.DayOfMonth), r.StartDate, r.EndDate, r.ID, s.userID)
		if err != nil {
			return fmt.Errorf("update schedule %d: %w", r.ID, err)
		}
		return nil
	})
	if err != nil {
		return core.ScheduleRule{}, err
	}
	r.UserID = s.userID
	return r, nil
}

// DeleteSchedule removes the rule. Linked transactions stay with their
// schedule_id cleared, except unconfirmed ones when deleteFuture is set.
func (s *userStore) DeleteSchedule(ctx context.Context, id int64, deleteFuture bool) error {
	return s.repo.withTx(ctx, func(q querier) error {
		ok, err := s.owns(ctx, q, "schedules", id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("schedule", id)
		}
		if deleteFuture {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM transactions WHERE schedule_id = ? AND user_id = ? AND is_confirmed = 0`,
				id, s.userID); err != nil {
				return fmt.Errorf("delete projected transactions of schedule %d: %w", id, err)
			}
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE transactions SET schedule_id = NULL WHERE schedule_id = ? AND user_id = ?`,
			id, s.userID); err != nil {
			return fmt.Errorf("unlink transactions of schedule %d: %w", id, err)
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM schedules WHERE id = ? AND user_id = ?`, id, s.userID); err != nil {
			return fmt.Errorf("delete schedule %d: %w", id, err)
		}
		return nil
	})
}

func (s *userStore) LastGeneratedDate(ctx context.Context, scheduleID int64) (core.Date, error) {
	var last core.Date
	err := s.repo.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM transactions WHERE schedule_id = ? AND user_id = ?`,
		scheduleID, s.userID).Scan(&last)
	if err != nil {
		return core.Date{}, fmt.Errorf("last generated date of schedule %d: %w", scheduleID, err)
	}
	return last, nil
}
