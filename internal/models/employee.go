package models

import (
	"strings"
	"time"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
)

// Employee is a staff member whose birthday is tracked and greeted.
type Employee struct {
	ID             string        `db:"id" json:"id"`
	UserID         string        `db:"user_id" json:"user_id"`
	Email          string        `db:"email" json:"email"`
	FirstName      string        `db:"first_name" json:"first_name"`
	LastName       string        `db:"last_name" json:"last_name"`
	MiddleName     string        `db:"middle_name" json:"middle_name,omitempty"`
	BirthDate      birthday.Date `db:"birth_date" json:"birth_date"`
	HireDate       *time.Time    `db:"hire_date" json:"hire_date,omitempty"`
	DepartmentID   *string       `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string       `db:"department_name" json:"department_name,omitempty"`
	PositionID     *string       `db:"position_id" json:"position_id,omitempty"`
	PositionName   *string       `db:"position_name" json:"position_name,omitempty"`
	PhotoPath      *string       `db:"photo_path" json:"-"`
	PhotoURL       string        `db:"-" json:"photo_url,omitempty"`
	Active         bool          `db:"active" json:"active"`
	Role           UserRole      `db:"role" json:"role"`

	NotificationSettings

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NotificationSettings are the per-employee greeting and privacy preferences.
type NotificationSettings struct {
	ReceiveEmail             bool   `db:"receive_email" json:"receive_email"`
	ReceiveInApp             bool   `db:"receive_in_app" json:"receive_in_app"`
	ReminderDaysBefore       int    `db:"reminder_days_before" json:"reminder_days_before"`
	SendTime                 string `db:"send_time" json:"send_time"`
	ShowBirthdayPublic       bool   `db:"show_birthday_public" json:"show_birthday_public"`
	AllowCardPersonalization bool   `db:"allow_card_personalization" json:"allow_card_personalization"`
}

// DefaultNotificationSettings are applied to newly created employees.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		ReceiveEmail:             true,
		ReceiveInApp:             true,
		ReminderDaysBefore:       1,
		SendTime:                 "09:00",
		ShowBirthdayPublic:       true,
		AllowCardPersonalization: true,
	}
}

// FullName joins the name parts in "First Middle Last" order.
func (e Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.FirstName, e.MiddleName, e.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// BirthdayRecord projects the employee onto the calculator input.
func (e Employee) BirthdayRecord() birthday.Record {
	return birthday.Record{ID: e.ID, BirthDate: e.BirthDate}
}

// EmployeeFilter captures filtering criteria for listing employees.
type EmployeeFilter struct {
	Search       string
	DepartmentID string
	PositionID   string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateEmployeeWithUserRequest creates a login account and its employee profile together.
type CreateEmployeeWithUserRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	Role         UserRole `json:"role" validate:"omitempty,oneof=hr employee"`
	FirstName    string   `json:"first_name" validate:"required,max=100"`
	LastName     string   `json:"last_name" validate:"required,max=100"`
	MiddleName   string   `json:"middle_name" validate:"omitempty,max=100"`
	BirthDate    string   `json:"birth_date" validate:"required"`
	HireDate     string   `json:"hire_date" validate:"omitempty"`
	DepartmentID *string  `json:"department_id" validate:"omitempty,uuid4"`
	PositionID   *string  `json:"position_id" validate:"omitempty,uuid4"`
}

// UpdateEmployeeRequest is the HR-side partial update.
type UpdateEmployeeRequest struct {
	FirstName    *string   `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName     *string   `json:"last_name" validate:"omitempty,min=1,max=100"`
	MiddleName   *string   `json:"middle_name" validate:"omitempty,max=100"`
	BirthDate    *string   `json:"birth_date"`
	HireDate     *string   `json:"hire_date"`
	DepartmentID *string   `json:"department_id" validate:"omitempty,uuid4"`
	PositionID   *string   `json:"position_id" validate:"omitempty,uuid4"`
	Role         *UserRole `json:"role" validate:"omitempty,oneof=hr employee"`
	Active       *bool     `json:"active"`
}

// UpdateProfileRequest is what an employee may change about themselves.
type UpdateProfileRequest struct {
	FirstName  *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=100"`

	UpdateNotificationSettingsRequest
}

// UpdateNotificationSettingsRequest patches notification preferences.
type UpdateNotificationSettingsRequest struct {
	ReceiveEmail             *bool   `json:"receive_email"`
	ReceiveInApp             *bool   `json:"receive_in_app"`
	ReminderDaysBefore       *int    `json:"reminder_days_before" validate:"omitempty,min=0,max=30"`
	SendTime                 *string `json:"send_time" validate:"omitempty,clock"`
	ShowBirthdayPublic       *bool   `json:"show_birthday_public"`
	AllowCardPersonalization *bool   `json:"allow_card_personalization"`
}

// Apply copies the provided fields onto settings.
func (r UpdateNotificationSettingsRequest) Apply(settings *NotificationSettings) {
	if r.ReceiveEmail != nil {
		settings.ReceiveEmail = *r.ReceiveEmail
	}
	if r.ReceiveInApp != nil {
		settings.ReceiveInApp = *r.ReceiveInApp
	}
	if r.ReminderDaysBefore != nil {
		settings.ReminderDaysBefore = *r.ReminderDaysBefore
	}
	if r.SendTime != nil {
		settings.SendTime = *r.SendTime
	}
	if r.ShowBirthdayPublic != nil {
		settings.ShowBirthdayPublic = *r.ShowBirthdayPublic
	}
	if r.AllowCardPersonalization != nil {
		settings.AllowCardPersonalization = *r.AllowCardPersonalization
	}
}
