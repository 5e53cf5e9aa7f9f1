package dto

import "github.com/noah-isme/birthday-greetings-api/internal/birthday"

// BirthdayView is one colleague in a birthday list, annotated for the current day.
type BirthdayView struct {
	EmployeeID     string            `json:"employeeId"`
	FullName       string            `json:"fullName"`
	Department     string            `json:"department,omitempty"`
	Position       string            `json:"position,omitempty"`
	PhotoURL       string            `json:"photoUrl,omitempty"`
	BirthDate      birthday.Date     `json:"birthDate"`
	NextOccurrence birthday.Date     `json:"nextOccurrence"`
	DaysUntil      int               `json:"daysUntil"`
	IsToday        bool              `json:"isToday"`
	Category       birthday.Category `json:"category"`
	CategoryLabel  string            `json:"categoryLabel"`
	Badge          string            `json:"badge"`
}

// BirthdayList is the colleagues page payload.
type BirthdayList struct {
	Date     birthday.Date  `json:"date"`
	Language string         `json:"language"`
	Items    []BirthdayView `json:"items"`
}

// BirthdayDashboard splits the list into today's and upcoming birthdays.
type BirthdayDashboard struct {
	Date         birthday.Date  `json:"date"`
	WindowDays   int            `json:"windowDays"`
	Today        []BirthdayView `json:"today"`
	Upcoming     []BirthdayView `json:"upcoming"`
	TotalTracked int            `json:"totalTracked"`
}
