package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cashcal/internal/core"
)

const transactionColumns = `id, date, amount, category_id, description, is_confirmed, schedule_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *userStore) scanTransaction(row rowScanner) (core.Transaction, error) {
	t := core.Transaction{UserID: s.userID}
	var category, schedule sql.NullInt64
	if err := row.Scan(&t.ID, &t.Date, &t.Amount, &category, &t.Description, &t.Confirmed, &schedule); err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = idPtr(category)
	t.ScheduleID = idPtr(schedule)
	return t, nil
}

func (s *userStore) ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{s.userID}
	)
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, to)
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date, id`

	rows, err := s.repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := s.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *userStore) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := s.repo.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, s.userID)
	t, err := s.scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, notFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (s *userStore) checkTransactionRefs(ctx context.Context, q querier, t core.Transaction) error {
	if err := s.checkRef(ctx, q, "categories", "category", t.CategoryID); err != nil {
		return err
	}
	return s.checkRef(ctx, q, "schedules", "schedule", t.ScheduleID)
}

func (s *userStore) insertTransaction(ctx context.Context, q querier, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkTransactionRefs(ctx, q, t); err != nil {
		return core.Transaction{}, err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO transactions (user_id, date, amount, category_id, description, is_confirmed, schedule_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.userID, t.Date, t.Amount, nullID(t.CategoryID), t.Description, t.Confirmed, nullID(t.ScheduleID))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	t.UserID = s.userID
	return t, nil
}

func (s *userStore) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var created core.Transaction
	err := s.repo.withTx(ctx, func(q querier) error {
		var err error
		created, err = s.insertTransaction(ctx, q, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"user_id", s.userID, "id", created.ID, "date", created.Date.String(), "amount", created.Amount.String())
	return created, nil
}

func (s *userStore) CreateTransactions(ctx context.Context, ts []core.Transaction) (int, error) {
	err := s.repo.withTx(ctx, func(q querier) error {
		for i, t := range ts {
			if _, err := s.insertTransaction(ctx, q, t); err != nil {
				return fmt.Errorf("transaction %d of %d: %w", i+1, len(ts), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ts), nil
}

func (s *userStore) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := s.repo.withTx(ctx, func(q querier) error {
		ok, err := s.owns(ctx, q, "transactions", t.ID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("transaction", t.ID)
		}
		if err := s.checkTransactionRefs(ctx, q, t); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`UPDATE transactions
			 SET date = ?, amount = ?, category_id = ?, description = ?, is_confirmed = ?, schedule_id = ?
			 WHERE id = ? AND user_id = ?`,
			t.Date, t.Amount, nullID(t.CategoryID), t.Description, t.Confirmed, nullID(t.ScheduleID),
			t.ID, s.userID)
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", t.ID, err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	t.UserID = s.userID
	return t, nil
}

func (s *userStore) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.repo.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, s.userID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return expectOne(res, "transaction", id)
}
