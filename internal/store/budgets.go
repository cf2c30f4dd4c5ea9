package store

import (
	"context"
	"fmt"
	"time"

	"github.com/insightdelivered/budget-tracker/internal/models"
)

// ListCategories returns the category taxonomy, alphabetically.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, COALESCE(description, '') FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCategory inserts a new category. Duplicate names are rejected by the
// unique constraint.
func (s *Store) AddCategory(ctx context.Context, c models.Category) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, description) VALUES (?, ?, ?)`,
		c.Name, c.Type, c.Description)
	if err != nil {
		return 0, fmt.Errorf("add category %q: %w", c.Name, err)
	}
	return res.LastInsertId()
}

// AddBudget inserts a budget for a category over a date range.
func (s *Store) AddBudget(ctx context.Context, b models.Budget) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (category, amount_minor, start_date, end_date) VALUES (?, ?, ?, ?)`,
		b.Category, toMinor(b.Amount), b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("add budget for %q: %w", b.Category, err)
	}
	return res.LastInsertId()
}

// ListBudgets returns budgets overlapping the given date, or all budgets
// when the date is zero.
func (s *Store) ListBudgets(ctx context.Context, on time.Time) ([]models.Budget, error) {
	query := `SELECT id, category, amount_minor, start_date, end_date FROM budgets`
	var args []any
	if !on.IsZero() {
		query += ` WHERE start_date <= ? AND end_date >= ?`
		d := on.Format(dateLayout)
		args = append(args, d, d)
	}
	query += ` ORDER BY start_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []models.Budget
	for rows.Next() {
		var (
			b          models.Budget
			minor      int64
			start, end string
		)
		if err := rows.Scan(&b.ID, &b.Category, &minor, &start, &end); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Amount = fromMinor(minor)
		b.StartDate, _ = time.Parse(dateLayout, start)
		b.EndDate, _ = time.Parse(dateLayout, end)
		out = append(out, b)
	}
	return out, rows.Err()
}
