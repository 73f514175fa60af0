package storage

import (
	"context"
	"fmt"

	"cashcal/internal/core"
)

func insertCategory(ctx context.Context, q querier, c core.Category) (core.Category, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES (?, ?, ?)`,
		c.UserID, c.Name, string(c.Kind))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *userStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.repo.db.QueryContext(ctx,
		`SELECT id, name, type FROM categories WHERE user_id = ? ORDER BY type, name, id`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		c := core.Category{UserID: s.userID}
		var kind string
		if err := rows.Scan(&c.ID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.CategoryKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *userStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.UserID = s.userID
	return insertCategory(ctx, s.repo.db, c)
}

func (s *userStore) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	res, err := s.repo.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Kind), c.ID, s.userID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	if err := expectOne(res, "category", c.ID); err != nil {
		return core.Category{}, err
	}
	c.UserID = s.userID
	return c, nil
}

// DeleteCategory clears the category from the user's transactions and
// schedules before removing it, all in one transaction.
func (s *userStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.withTx(ctx, func(q querier) error {
		ok, err := s.owns(ctx, q, "categories", id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("category", id)
		}
		for _, table := range []string{"transactions", "schedules"} {
			if _, err := q.ExecContext(ctx,
				`UPDATE `+table+` SET category_id = NULL WHERE category_id = ? AND user_id = ?`,
				id, s.userID); err != nil {
				return fmt.Errorf("clear category %d from %s: %w", id, table, err)
			}
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, s.userID); err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		return nil
	})
}
