package dto

import "time"

// GreetingDelivery is the queued payload for one birthday card email.
type GreetingDelivery struct {
	EmployeeID   string  `json:"employeeId"`
	EmployeeName string  `json:"employeeName"`
	Email        string  `json:"email"`
	TemplateID   *string `json:"templateId,omitempty"`
	TemplateName *string `json:"templateName,omitempty"`
	CardPath     string  `json:"cardPath"`
	GreetingDate string  `json:"greetingDate"`
}

// FileLink is a time-limited download URL.
type FileLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
