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

const cardTemplateColumns = `id, name, background_image_url, text_template, font_size, font_color, text_x, text_y, department_id, position_id, created_at, updated_at`

// CardTemplateRepository provides database access for greeting card templates.
type CardTemplateRepository struct {
	db *sqlx.DB
}

// NewCardTemplateRepository creates a new instance of CardTemplateRepository.
func NewCardTemplateRepository(db *sqlx.DB) *CardTemplateRepository {
	return &CardTemplateRepository{db: db}
}

// List returns every template ordered by name.
func (r *CardTemplateRepository) List(ctx context.Context) ([]models.CardTemplate, error) {
	query := `SELECT ` + cardTemplateColumns + ` FROM card_templates ORDER BY LOWER(name) ASC, id ASC`
	var templates []models.CardTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list card templates: %w", err)
	}
	return templates, nil
}

// FindByID returns a template by identifier.
func (r *CardTemplateRepository) FindByID(ctx context.Context, id string) (*models.CardTemplate, error) {
	query := `SELECT ` + cardTemplateColumns + ` FROM card_templates WHERE id = $1 LIMIT 1`
	var tpl models.CardTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find card template: %w", err)
	}
	return &tpl, nil
}

// Create inserts a new template.
func (r *CardTemplateRepository) Create(ctx context.Context, tpl *models.CardTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	const query = `INSERT INTO card_templates (id, name, background_image_url, text_template, font_size, font_color, text_x, text_y, department_id, position_id, created_at, updated_at) VALUES (:id, :name, :background_image_url, :text_template, :font_size, :font_color, :text_x, :text_y, :department_id, :position_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create card template: %w", err)
	}
	return nil
}

// Update persists all mutable template fields.
func (r *CardTemplateRepository) Update(ctx context.Context, tpl *models.CardTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	const query = `UPDATE card_templates SET name = :name, background_image_url = :background_image_url, text_template = :text_template, font_size = :font_size, font_color = :font_color, text_x = :text_x, text_y = :text_y, department_id = :department_id, position_id = :position_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, tpl)
	if err != nil {
		return fmt.Errorf("update card template: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template. Past greeting logs keep their denormalised name.
func (r *CardTemplateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM card_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card template: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
