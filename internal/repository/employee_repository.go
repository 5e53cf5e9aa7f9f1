package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

const employeeColumns = `e.id, e.user_id, u.email, u.role, e.first_name, e.last_name, e.middle_name, e.birth_date, e.hire_date, e.department_id, d.name AS department_name, e.position_id, p.name AS position_name, e.photo_path, e.active, e.receive_email, e.receive_in_app, e.reminder_days_before, e.send_time, e.show_birthday_public, e.allow_card_personalization, e.created_at, e.updated_at`

const employeeFrom = `FROM employees e JOIN users u ON u.id = e.user_id LEFT JOIN departments d ON d.id = e.department_id LEFT JOIN positions p ON p.id = e.position_id`

// EmployeeRepository provides database access for employee profiles.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// List returns employees based on filters with total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	base := employeeFrom + ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(e.first_name) LIKE $%d OR LOWER(e.last_name) LIKE $%d OR LOWER(u.email) LIKE $%d)", idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.PositionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.position_id = $%d", len(args)+1))
		args = append(args, filter.PositionID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("e.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"last_name":  "e.last_name",
		"first_name": "e.first_name",
		"birth_date": "e.birth_date",
		"created_at": "e.created_at",
		"email":      "u.email",
	}
	sortColumn, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortColumn = "e.last_name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, e.id ASC LIMIT %d OFFSET %d", employeeColumns, base, sortColumn, sortOrder, pageSize, offset)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return employees, total, nil
}

// ListActive returns every active employee, the input to birthday calculations.
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` ` + employeeFrom + ` WHERE e.active = TRUE AND u.active = TRUE ORDER BY e.id`
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}

// FindByID returns an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` ` + employeeFrom + ` WHERE e.id = $1 LIMIT 1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &employee, nil
}

// FindByUserID returns the employee linked to a login account.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` ` + employeeFrom + ` WHERE e.user_id = $1 LIMIT 1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by user: %w", err)
	}
	return &employee, nil
}

// EmailExists reports whether a user with the email already exists.
func (r *EmployeeRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// CreateWithUser inserts the login account and employee profile in one transaction.
func (r *EmployeeRepository) CreateWithUser(ctx context.Context, user *models.User, employee *models.Employee) (err error) {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	employee.UserID = user.ID
	employee.CreatedAt, employee.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create employee tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const userQuery = `INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :role, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	const employeeQuery = `INSERT INTO employees (id, user_id, first_name, last_name, middle_name, birth_date, hire_date, department_id, position_id, photo_path, active, receive_email, receive_in_app, reminder_days_before, send_time, show_birthday_public, allow_card_personalization, created_at, updated_at) VALUES (:id, :user_id, :first_name, :last_name, :middle_name, :birth_date, :hire_date, :department_id, :position_id, :photo_path, :active, :receive_email, :receive_in_app, :reminder_days_before, :send_time, :show_birthday_public, :allow_card_personalization, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, employeeQuery, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create employee tx: %w", err)
	}
	return nil
}

// Update persists HR-editable employee fields and the linked account's role and active flag.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) (err error) {
	employee.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update employee tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const employeeQuery = `UPDATE employees SET first_name = :first_name, last_name = :last_name, middle_name = :middle_name, birth_date = :birth_date, hire_date = :hire_date, department_id = :department_id, position_id = :position_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, employeeQuery, employee); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}

	const userQuery = `UPDATE users SET role = $2, active = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, userQuery, employee.UserID, employee.Role, employee.Active, employee.UpdatedAt); err != nil {
		return fmt.Errorf("update employee account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update employee tx: %w", err)
	}
	return nil
}

// UpdateProfile persists the fields an employee may edit about themselves.
func (r *EmployeeRepository) UpdateProfile(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET first_name = :first_name, last_name = :last_name, middle_name = :middle_name, receive_email = :receive_email, receive_in_app = :receive_in_app, reminder_days_before = :reminder_days_before, send_time = :send_time, show_birthday_public = :show_birthday_public, allow_card_personalization = :allow_card_personalization, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("update employee profile: %w", err)
	}
	return nil
}

// UpdatePhoto sets or clears the stored photo path.
func (r *EmployeeRepository) UpdatePhoto(ctx context.Context, id string, photoPath *string) error {
	const query = `UPDATE employees SET photo_path = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, photoPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update employee photo: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate performs a soft delete of the employee and their account.
func (r *EmployeeRepository) Deactivate(ctx context.Context, id string) (err error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate employee tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID string
	if err = tx.GetContext(ctx, &userID, `UPDATE employees SET active = FALSE, updated_at = $2 WHERE id = $1 RETURNING user_id`, id, now); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("deactivate employee: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`, userID, now); err != nil {
		return fmt.Errorf("deactivate employee account: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`, userID, now); err != nil {
		return fmt.Errorf("revoke employee sessions: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivate employee tx: %w", err)
	}
	return nil
}
