// Package memory is an in-process tenant directory for development and tests.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"cashcal/internal/core"
	"cashcal/internal/tenant"
)

type bucket struct {
	settings     *core.Settings
	categories   []core.Category
	transactions []core.Transaction
	schedules    []core.ScheduleRule
}

// Directory keeps every user's rows in memory behind one mutex.
type Directory struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*bucket
	today  func() core.Date
}

func New() *Directory {
	return &Directory{users: make(map[string]*bucket), today: core.Today}
}

// WithClock overrides the day used for seeded settings.
func (d *Directory) WithClock(today func() core.Date) *Directory {
	d.today = today
	return d
}

func (d *Directory) GetOrCreateUser(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("empty user id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.bucket(userID)
	if b.settings != nil {
		return false, nil
	}
	s := core.DefaultSettings(userID, d.today())
	b.settings = &s
	for _, c := range core.DefaultCategories(userID) {
		c.ID = d.id()
		b.categories = append(b.categories, c)
	}
	return true, nil
}

func (d *Directory) ForUser(userID string) tenant.Store {
	return &store{dir: d, userID: userID}
}

func (d *Directory) ListUsers(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.users))
	for id, b := range d.users {
		if b.settings != nil {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (d *Directory) Ping(context.Context) error { return nil }

// bucket returns the user's rows, creating an empty set. Caller holds d.mu.
func (d *Directory) bucket(userID string) *bucket {
	b, ok := d.users[userID]
	if !ok {
		b = &bucket{}
		d.users[userID] = b
	}
	return b
}

func (d *Directory) id() int64 {
	d.nextID++
	return d.nextID
}

type store struct {
	dir    *Directory
	userID string
}

func (s *store) UserID() string { return s.userID }

// lock acquires the directory and returns the caller's rows.
func (s *store) lock() *bucket {
	s.dir.mu.Lock()
	return s.dir.bucket(s.userID)
}

func (s *store) unlock() { s.dir.mu.Unlock() }

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, tenant.ErrNotFound)
}

func (b *bucket) checkCategory(id *int64) error {
	if id == nil {
		return nil
	}
	if slices.ContainsFunc(b.categories, func(c core.Category) bool { return c.ID == *id }) {
		return nil
	}
	return notFound("category", *id)
}

func (b *bucket) checkSchedule(id *int64) error {
	if id == nil {
		return nil
	}
	if slices.ContainsFunc(b.schedules, func(r core.ScheduleRule) bool { return r.ID == *id }) {
		return nil
	}
	return notFound("schedule", *id)
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTx(t core.Transaction) core.Transaction {
	t.CategoryID = clonePtr(t.CategoryID)
	t.ScheduleID = clonePtr(t.ScheduleID)
	return t
}

func cloneRule(r core.ScheduleRule) core.ScheduleRule {
	r.CategoryID = clonePtr(r.CategoryID)
	return r
}

// Categories

func (s *store) ListCategories(context.Context) ([]core.Category, error) {
	b := s.lock()
	defer s.unlock()
	out := slices.Clone(b.categories)
	slices.SortFunc(out, func(x, y core.Category) int {
		return cmp.Or(cmp.Compare(x.Kind, y.Kind), cmp.Compare(x.Name, y.Name), cmp.Compare(x.ID, y.ID))
	})
	if out == nil {
		out = []core.Category{}
	}
	return out, nil
}

func (s *store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	b := s.lock()
	defer s.unlock()
	c.ID = s.dir.id()
	c.UserID = s.userID
	b.categories = append(b.categories, c)
	return c, nil
}

func (s *store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.categories, func(x core.Category) bool { return x.ID == c.ID })
	if i < 0 {
		return core.Category{}, notFound("category", c.ID)
	}
	c.UserID = s.userID
	b.categories[i] = c
	return c, nil
}

func (s *store) DeleteCategory(_ context.Context, id int64) error {
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.categories, func(x core.Category) bool { return x.ID == id })
	if i < 0 {
		return notFound("category", id)
	}
	b.categories = slices.Delete(b.categories, i, i+1)
	for j := range b.transactions {
		if p := b.transactions[j].CategoryID; p != nil && *p == id {
			b.transactions[j].CategoryID = nil
		}
	}
	for j := range b.schedules {
		if p := b.schedules[j].CategoryID; p != nil && *p == id {
			b.schedules[j].CategoryID = nil
		}
	}
	return nil
}

// Transactions

func inRange(d, from, to core.Date) bool {
	if !from.IsZero() && d.Before(from.Time) {
		return false
	}
	return to.IsZero() || !d.After(to.Time)
}

func (s *store) ListTransactions(_ context.Context, from, to core.Date) ([]core.Transaction, error) {
	b := s.lock()
	defer s.unlock()
	out := []core.Transaction{}
	for _, t := range b.transactions {
		if inRange(t.Date, from, to) {
			out = append(out, cloneTx(t))
		}
	}
	slices.SortStableFunc(out, func(x, y core.Transaction) int {
		return cmp.Or(x.Date.Compare(y.Date.Time), cmp.Compare(x.ID, y.ID))
	})
	return out, nil
}

func (s *store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	b := s.lock()
	defer s.unlock()
	for _, t := range b.transactions {
		if t.ID == id {
			return cloneTx(t), nil
		}
	}
	return core.Transaction{}, notFound("transaction", id)
}

func (s *store) insertTx(b *bucket, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := b.checkCategory(t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := b.checkSchedule(t.ScheduleID); err != nil {
		return core.Transaction{}, err
	}
	t = cloneTx(t)
	t.ID = s.dir.id()
	t.UserID = s.userID
	b.transactions = append(b.transactions, t)
	return cloneTx(t), nil
}

func (s *store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	b := s.lock()
	defer s.unlock()
	return s.insertTx(b, t)
}

func (s *store) CreateTransactions(_ context.Context, ts []core.Transaction) (int, error) {
	b := s.lock()
	defer s.unlock()
	snapshot := len(b.transactions)
	for i, t := range ts {
		if _, err := s.insertTx(b, t); err != nil {
			b.transactions = b.transactions[:snapshot]
			return 0, fmt.Errorf("transaction %d of %d: %w", i+1, len(ts), err)
		}
	}
	return len(ts), nil
}

func (s *store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.transactions, func(x core.Transaction) bool { return x.ID == t.ID })
	if i < 0 {
		return core.Transaction{}, notFound("transaction", t.ID)
	}
	if err := b.checkCategory(t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := b.checkSchedule(t.ScheduleID); err != nil {
		return core.Transaction{}, err
	}
	t = cloneTx(t)
	t.UserID = s.userID
	b.transactions[i] = t
	return cloneTx(t), nil
}

func (s *store) DeleteTransaction(_ context.Context, id int64) error {
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.transactions, func(x core.Transaction) bool { return x.ID == id })
	if i < 0 {
		return notFound("transaction", id)
	}
	b.transactions = slices.Delete(b.transactions, i, i+1)
	return nil
}

// Schedules

func (s *store) ListSchedules(context.Context) ([]core.ScheduleRule, error) {
	b := s.lock()
	defer s.unlock()
	out := make([]core.ScheduleRule, 0, len(b.schedules))
	for _, r := range b.schedules {
		out = append(out, cloneRule(r))
	}
	slices.SortFunc(out, func(x, y core.ScheduleRule) int { return cmp.Compare(x.ID, y.ID) })
	return out, nil
}

func (s *store) GetSchedule(_ context.Context, id int64) (core.ScheduleRule, error) {
	b := s.lock()
	defer s.unlock()
	for _, r := range b.schedules {
		if r.ID == id {
			return cloneRule(r), nil
		}
	}
	return core.ScheduleRule{}, notFound("schedule", id)
}

func (s *store) CreateSchedule(_ context.Context, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	if err := r.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}
	b := s.lock()
	defer s.unlock()
	if err := b.checkCategory(r.CategoryID); err != nil {
		return core.ScheduleRule{}, err
	}
	r = cloneRule(r)
	r.ID = s.dir.id()
	r.UserID = s.userID
	b.schedules = append(b.schedules, r)
	return cloneRule(r), nil
}

func (s *store) UpdateSchedule(_ context.Context, r core.ScheduleRule) (core.ScheduleRule, error) {
	r.Recurrence = r.Recurrence.Normalize()
	if err := r.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.schedules, func(x core.ScheduleRule) bool { return x.ID == r.ID })
	if i < 0 {
		return core.ScheduleRule{}, notFound("schedule", r.ID)
	}
	if err := b.checkCategory(r.CategoryID); err != nil {
		return core.ScheduleRule{}, err
	}
	r = cloneRule(r)
	r.UserID = s.userID
	b.schedules[i] = r
	return cloneRule(r), nil
}

func (s *store) DeleteSchedule(_ context.Context, id int64, deleteFuture bool) error {
	b := s.lock()
	defer s.unlock()
	i := slices.IndexFunc(b.schedules, func(x core.ScheduleRule) bool { return x.ID == id })
	if i < 0 {
		return notFound("schedule", id)
	}
	b.schedules = slices.Delete(b.schedules, i, i+1)

	linked := func(t core.Transaction) bool { return t.ScheduleID != nil && *t.ScheduleID == id }
	if deleteFuture {
		b.transactions = slices.DeleteFunc(b.transactions, func(t core.Transaction) bool {
			return linked(t) && !t.Confirmed
		})
	}
	for j := range b.transactions {
		if linked(b.transactions[j]) {
			b.transactions[j].ScheduleID = nil
		}
	}
	return nil
}

func (s *store) LastGeneratedDate(_ context.Context, scheduleID int64) (core.Date, error) {
	b := s.lock()
	defer s.unlock()
	var last core.Date
	for _, t := range b.transactions {
		if t.ScheduleID != nil && *t.ScheduleID == scheduleID && t.Date.After(last.Time) {
			last = t.Date
		}
	}
	return last, nil
}

// Settings

func (s *store) GetSettings(context.Context) (core.Settings, error) {
	b := s.lock()
	defer s.unlock()
	if b.settings == nil {
		return core.Settings{}, fmt.Errorf("settings for %s: %w", s.userID, tenant.ErrNotFound)
	}
	return *b.settings, nil
}

func (s *store) SaveSettings(_ context.Context, settings core.Settings) (core.Settings, error) {
	if err := settings.Validate(); err != nil {
		return core.Settings{}, err
	}
	b := s.lock()
	defer s.unlock()
	settings.UserID = s.userID
	b.settings = &settings
	return settings, nil
}
