package models

import "time"

// Table is a physical venue table. Groups are seated at tables in
// ascending SortOrder.
type Table struct {
	ID        int       `json:"id"`
	Label     string    `json:"label"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
