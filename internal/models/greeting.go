package models

import "time"

// GreetingLog records one delivery attempt outcome for a birthday card.
type GreetingLog struct {
	ID           string    `db:"id" json:"id"`
	EmployeeID   string    `db:"employee_id" json:"employee_id"`
	EmployeeName string    `db:"employee_name" json:"employee_name"`
	TemplateID   *string   `db:"template_id" json:"template_id,omitempty"`
	TemplateName *string   `db:"template_name" json:"template_name,omitempty"`
	ImagePath    string    `db:"image_path" json:"-"`
	ImageURL     string    `db:"-" json:"image_url,omitempty"`
	GreetingDate time.Time `db:"greeting_date" json:"greeting_date"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
	Success      bool      `db:"success" json:"success"`
	Attempts     int       `db:"attempts" json:"attempts"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
}

// GreetingLogFilter narrows the greeting history.
type GreetingLogFilter struct {
	EmployeeID string
	Success    *bool
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// GreetingRunResult summarises one dispatch pass.
type GreetingRunResult struct {
	Date       string   `json:"date"`
	Candidates int      `json:"candidates"`
	Queued     int      `json:"queued"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Employees  []string `json:"employees"`
}
