package models

import "time"

// NamePlaceholder is substituted with the employee's name when a card is rendered.
const NamePlaceholder = "{name}"

// CardTemplate describes how a greeting card is drawn. BackgroundImageURL is
// either an http(s) URL or a key in the backgrounds bucket.
type CardTemplate struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	BackgroundImageURL string    `db:"background_image_url" json:"background_image_url"`
	BackgroundURL      string    `db:"-" json:"background_url,omitempty"`
	TextTemplate       string    `db:"text_template" json:"text_template"`
	FontSize           float64   `db:"font_size" json:"font_size"`
	FontColor          string    `db:"font_color" json:"font_color"`
	TextX              float64   `db:"text_x" json:"text_x"`
	TextY              float64   `db:"text_y" json:"text_y"`
	DepartmentID       *string   `db:"department_id" json:"department_id,omitempty"`
	PositionID         *string   `db:"position_id" json:"position_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// CardTemplateRequest creates a card template.
type CardTemplateRequest struct {
	Name               string  `json:"name" validate:"required,max=150"`
	BackgroundImageURL string  `json:"background_image_url" validate:"omitempty,max=1024"`
	TextTemplate       string  `json:"text_template" validate:"required,max=2000"`
	FontSize           float64 `json:"font_size" validate:"required,gt=0,lte=200"`
	FontColor          string  `json:"font_color" validate:"required,hexrgb"`
	TextX              float64 `json:"text_x" validate:"gte=0,lte=800"`
	TextY              float64 `json:"text_y" validate:"gte=0,lte=600"`
	DepartmentID       *string `json:"department_id" validate:"omitempty,uuid4"`
	PositionID         *string `json:"position_id" validate:"omitempty,uuid4"`
}

// UpdateCardTemplateRequest patches a card template.
type UpdateCardTemplateRequest struct {
	Name               *string  `json:"name" validate:"omitempty,min=1,max=150"`
	BackgroundImageURL *string  `json:"background_image_url" validate:"omitempty,max=1024"`
	TextTemplate       *string  `json:"text_template" validate:"omitempty,max=2000"`
	FontSize           *float64 `json:"font_size" validate:"omitempty,gt=0,lte=200"`
	FontColor          *string  `json:"font_color" validate:"omitempty,hexrgb"`
	TextX              *float64 `json:"text_x" validate:"omitempty,gte=0,lte=800"`
	TextY              *float64 `json:"text_y" validate:"omitempty,gte=0,lte=600"`
	DepartmentID       *string  `json:"department_id" validate:"omitempty,uuid4"`
	PositionID         *string  `json:"position_id" validate:"omitempty,uuid4"`
	ClearDepartment    bool     `json:"clear_department"`
	ClearPosition      bool     `json:"clear_position"`
}

// Matches reports whether the template targets the given department and position.
// Nil targets on the template match anything.
func (t CardTemplate) Matches(departmentID, positionID *string) bool {
	return matchesTarget(t.DepartmentID, departmentID) && matchesTarget(t.PositionID, positionID)
}

func matchesTarget(target, actual *string) bool {
	if target == nil {
		return true
	}
	return actual != nil && *target == *actual
}
