package models

import "time"

// Audit actions recorded for account and HR changes.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionEmployeeCreate = "EMPLOYEE_CREATE"
	AuditActionEmployeeUpdate = "EMPLOYEE_UPDATE"
	AuditActionEmployeeDelete = "EMPLOYEE_DELETE"
	AuditActionTemplateChange = "CARD_TEMPLATE_CHANGE"
	AuditActionSettingsChange = "MAILING_SETTINGS_CHANGE"
	AuditActionGreetingRun    = "GREETING_RUN"
	AuditActionExport         = "EXPORT"
	AuditActionCatalogChange  = "CATALOG_CHANGE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
