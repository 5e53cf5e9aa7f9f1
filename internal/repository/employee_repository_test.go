package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

var employeeRowColumns = []string{
	"id", "user_id", "email", "role", "first_name", "last_name", "middle_name", "birth_date", "hire_date",
	"department_id", "department_name", "position_id", "position_name", "photo_path", "active",
	"receive_email", "receive_in_app", "reminder_days_before", "send_time", "show_birthday_public",
	"allow_card_personalization", "created_at", "updated_at",
}

func employeeRow(rows *sqlmock.Rows, id, first, last, birth string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "u-"+id, first+"@corp.test", "employee", first, last, "", birth, nil,
		"d1", "Engineering", nil, nil, nil, true,
		true, true, 1, "09:00", true,
		true, now, now)
}

func TestEmployeeRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	rows := employeeRow(sqlmock.NewRows(employeeRowColumns), "e1", "Anna", "Ivanova", "1990-03-15")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 ORDER BY e.last_name ASC, e.id ASC LIMIT 20 OFFSET 0")).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM employees e")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EmployeeFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, birthday.MustDate(1990, time.March, 15), list[0].BirthDate)
	assert.Equal(t, "Engineering", *list[0].DepartmentName)
	assert.True(t, list[0].ShowBirthdayPublic)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("AND e.department_id = $2 AND e.active = $3 ORDER BY u.email DESC, e.id ASC LIMIT 10 OFFSET 10")).
		WithArgs("%anna%", "d1", true).
		WillReturnRows(sqlmock.NewRows(employeeRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("%anna%", "d1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.EmployeeFilter{
		Search: "Anna", DepartmentID: "d1", Active: &active,
		Page: 2, PageSize: 10, SortBy: "email", SortOrder: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryCreateWithUserCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO employees").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "a@corp.test", PasswordHash: "hash", Role: models.RoleEmployee, Active: true}
	employee := &models.Employee{FirstName: "Anna", LastName: "Ivanova", BirthDate: birthday.MustDate(1990, time.March, 15), Active: true}
	require.NoError(t, repo.CreateWithUser(context.Background(), user, employee))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, employee.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryCreateWithUserRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO employees").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.CreateWithUser(context.Background(), &models.User{Email: "a@corp.test"}, &models.Employee{BirthDate: birthday.MustDate(1990, time.March, 15)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create employee")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE employees SET active = FALSE")).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE")).WithArgs("u1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).WithArgs("u1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Deactivate(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryDeactivateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE employees SET active = FALSE")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Deactivate(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryUpdatePhotoMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE employees SET photo_path = $2")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePhoto(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
