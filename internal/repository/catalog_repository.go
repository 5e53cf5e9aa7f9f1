package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

// catalogRepository stores simple name lookups (departments, positions).
type catalogRepository[T any] struct {
	db    *sqlx.DB
	table string
	label string
}

func (r *catalogRepository[T]) List(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s ORDER BY LOWER(name) ASC, id ASC`, r.table)
	var items []T
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	return items, nil
}

func (r *catalogRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s WHERE id = $1 LIMIT 1`, r.table)
	var item T
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}
	return &item, nil
}

// NameExists checks case-insensitive uniqueness, ignoring excludeID when set.
func (r *catalogRepository[T]) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE LOWER(name) = LOWER($1) AND ($2 = '' OR id::text <> $2))`, r.table)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check %s name: %w", r.label, err)
	}
	return exists, nil
}

func (r *catalogRepository[T]) Create(ctx context.Context, name string) (*T, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING id, name, created_at, updated_at`, r.table)
	var item T
	if err := r.db.GetContext(ctx, &item, query, uuid.NewString(), name, now); err != nil {
		return nil, fmt.Errorf("create %s: %w", r.label, err)
	}
	return &item, nil
}

func (r *catalogRepository[T]) Rename(ctx context.Context, id, name string) (*T, error) {
	query := fmt.Sprintf(`UPDATE %s SET name = $2, updated_at = $3 WHERE id = $1 RETURNING id, name, created_at, updated_at`, r.table)
	var item T
	if err := r.db.GetContext(ctx, &item, query, id, name, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("rename %s: %w", r.label, err)
	}
	return &item, nil
}

func (r *catalogRepository[T]) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.label, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DepartmentRepository provides database access for departments.
type DepartmentRepository struct {
	catalogRepository[models.Department]
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{catalogRepository[models.Department]{db: db, table: "departments", label: "department"}}
}

// PositionRepository provides database access for positions.
type PositionRepository struct {
	catalogRepository[models.Position]
}

// NewPositionRepository creates a new instance of PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{catalogRepository[models.Position]{db: db, table: "positions", label: "position"}}
}
