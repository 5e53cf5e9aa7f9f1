package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepartmentRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO departments (id, name, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "Engineering", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).AddRow("d1", "Engineering", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM departments ORDER BY LOWER(name) ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow("d1", "Engineering", now, now).
			AddRow("d2", "Finance", now, now))

	created, err := repo.Create(context.Background(), "Engineering")
	require.NoError(t, err)
	assert.Equal(t, "d1", created.ID)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepositoryNameExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPositionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM positions WHERE LOWER(name) = LOWER($1)")).
		WithArgs("developer", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.NameExists(context.Background(), "developer", "p1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPositionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM positions WHERE id = $1")).WithArgs("x").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "x"), sql.ErrNoRows)
}
