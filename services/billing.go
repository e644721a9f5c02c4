package services

import "context"

// ChargeResult is the outcome of an entry-fee authorization attempt.
type ChargeResult struct {
	Authorized bool
	Reference  string
}

// BillingGate authorizes entry-fee payments. Registration treats the
// outcome as a boolean gate: a declined or failed charge rolls the
// registration back.
type BillingGate interface {
	Charge(ctx context.Context, customerID int, amount int64, currency string) (*ChargeResult, error)
}
