package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

const greetingLogColumns = `id, employee_id, employee_name, template_id, template_name, image_path, greeting_date, sent_at, success, attempts, error_message`

// GreetingLogRepository stores the history of sent birthday cards.
type GreetingLogRepository struct {
	db *sqlx.DB
}

// NewGreetingLogRepository creates a new instance of GreetingLogRepository.
func NewGreetingLogRepository(db *sqlx.DB) *GreetingLogRepository {
	return &GreetingLogRepository{db: db}
}

// Create appends a history entry.
func (r *GreetingLogRepository) Create(ctx context.Context, entry *models.GreetingLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO greeting_logs (id, employee_id, employee_name, template_id, template_name, image_path, greeting_date, sent_at, success, attempts, error_message) VALUES (:id, :employee_id, :employee_name, :template_id, :template_name, :image_path, :greeting_date, :sent_at, :success, :attempts, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create greeting log: %w", err)
	}
	return nil
}

// GreetedOn returns the subset of employeeIDs that already have a successful greeting for the date.
func (r *GreetingLogRepository) GreetedOn(ctx context.Context, date time.Time, employeeIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return result, nil
	}
	const query = `SELECT DISTINCT employee_id FROM greeting_logs WHERE greeting_date = $1 AND success = TRUE AND employee_id = ANY($2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, date.Format("2006-01-02"), pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("find greeted employees: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// List returns history entries newest first with total count.
func (r *GreetingLogRepository) List(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, int, error) {
	base := `FROM greeting_logs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EmployeeID != "" {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", len(args)+1))
		args = append(args, *filter.Success)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("sent_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("sent_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY sent_at DESC, id DESC LIMIT %d OFFSET %d", greetingLogColumns, base, pageSize, offset)
	var logs []models.GreetingLog
	if err := r.db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list greeting logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count greeting logs: %w", err)
	}
	return logs, total, nil
}
