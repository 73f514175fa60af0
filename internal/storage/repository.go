// Package storage is the SQLite-backed tenant directory.
//
// All users share one database; every statement filters on user_id.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cashcal/internal/core"
	"cashcal/internal/tenant"

	_ "modernc.org/sqlite"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db    *sql.DB
	today func() core.Date
}

var _ tenant.Directory = (*SQLiteRepository)(nil)

// DSN adds the connection pragmas to a database path.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(dbPath)

	version, err := RunMigrations(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite database ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, today: core.Today}, nil
}

// WithClock overrides the day used for seeded settings.
func (r *SQLiteRepository) WithClock(today func() core.Date) *SQLiteRepository {
	r.today = today
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOrCreateUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("empty user id")
	}
	created := false
	err := r.withTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, userID)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if n == 0 {
			return nil
		}
		created = true

		s := core.DefaultSettings(userID, r.today())
		if err := upsertSettings(ctx, q, s); err != nil {
			return err
		}
		for _, c := range core.DefaultCategories(userID) {
			if _, err := insertCategory(ctx, q, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		slog.InfoContext(ctx, "User created with default settings", "user_id", userID)
	}
	return created, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ForUser(userID string) tenant.Store {
	return &userStore{repo: r, userID: userID}
}

// userStore scopes every statement to one user id.
type userStore struct {
	repo   *SQLiteRepository
	userID string
}

func (s *userStore) UserID() string { return s.userID }

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, tenant.ErrNotFound)
}

// owns reports whether table holds row id for the user.
func (s *userStore) owns(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE id = ? AND user_id = ?`, id, s.userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return true, nil
}

func (s *userStore) checkRef(ctx context.Context, q querier, table, kind string, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := s.owns(ctx, q, table, *id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(kind, *id)
	}
	return nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func expectOne(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", kind, id, err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
