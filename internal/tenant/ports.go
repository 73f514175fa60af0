// Package tenant defines the user-scoped storage ports.
//
// A Store is obtained from a Directory for one authenticated user id and can
// only see and change that user's rows. Rows of other users behave as if they
// did not exist and yield ErrNotFound.
package tenant

import (
	"context"
	"errors"

	"cashcal/internal/core"
)

var ErrNotFound = errors.New("not found")

type (
	// Directory hands out tenant-scoped stores.
	Directory interface {
		// GetOrCreateUser registers userID on first sight, seeding default
		// settings and categories. created reports whether the user is new.
		GetOrCreateUser(ctx context.Context, userID string) (created bool, err error)
		ForUser(userID string) Store
		ListUsers(ctx context.Context) ([]string, error)
		Ping(ctx context.Context) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory removes the category and clears it from the owner's
		// transactions and schedules.
		DeleteCategory(ctx context.Context, id int64) error
	}

	TransactionStore interface {
		// ListTransactions returns transactions ordered by date then id.
		// A zero bound is open.
		ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// CreateTransactions inserts all rows or none.
		CreateTransactions(ctx context.Context, ts []core.Transaction) (int, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
	}

	ScheduleStore interface {
		ListSchedules(ctx context.Context) ([]core.ScheduleRule, error)
		GetSchedule(ctx context.Context, id int64) (core.ScheduleRule, error)
		CreateSchedule(ctx context.Context, r core.ScheduleRule) (core.ScheduleRule, error)
		UpdateSchedule(ctx context.Context, r core.ScheduleRule) (core.ScheduleRule, error)
		// DeleteSchedule unlinks the schedule's transactions. With deleteFuture
		// the unconfirmed ones are deleted instead.
		DeleteSchedule(ctx context.Context, id int64, deleteFuture bool) error
		// LastGeneratedDate is the latest date of a transaction linked to the
		// schedule, or the zero Date when there is none.
		LastGeneratedDate(ctx context.Context, scheduleID int64) (core.Date, error)
	}

	SettingsStore interface {
		GetSettings(ctx context.Context) (core.Settings, error)
		SaveSettings(ctx context.Context, s core.Settings) (core.Settings, error)
	}

	// Store is every operation available to one user.
	Store interface {
		UserID() string
		CategoryStore
		TransactionStore
		ScheduleStore
		SettingsStore
	}
)
