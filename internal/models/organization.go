package models

import "time"

// Department groups employees organisationally.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Position is a job title employees may hold.
type Position struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NamedEntityRequest creates or renames a department or position.
type NamedEntityRequest struct {
	Name string `json:"name" validate:"required,min=1,max=150"`
}
