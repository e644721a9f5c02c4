package models

import "time"

// TournamentPlayer binds a customer to a tournament exactly once
// (unique on tournament_id + customer_id). Created at registration and
// never mutated afterwards.
type TournamentPlayer struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	CustomerID   int       `json:"customer_id"`
	PaymentRef   *string   `json:"payment_ref,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}
