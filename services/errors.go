package services

import "errors"

// Errors shared across services and the HTTP error mapping.
var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRoundNotFound      = errors.New("tournament round not found")
	ErrGroupNotFound      = errors.New("group not found in this round")

	// Validation and business rules
	ErrTournamentInvalidCapacity  = errors.New("tournament player limit must be at least 2")
	ErrTournamentInvalidGroupSize = errors.New("tournament group size must be at least 2")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrRegistrationClosed         = errors.New("tournament registration is not open")
	ErrNotEnoughPlayers           = errors.New("at least 2 registered players are required to start")
	ErrInvalidStatusTransition    = errors.New("invalid tournament status transition")
	ErrPlayerNotInGroup           = errors.New("customer is not assigned to this group")

	// Conflicts
	ErrAlreadyRegistered     = errors.New("customer is already registered for this tournament")
	ErrTournamentFull        = errors.New("tournament player limit reached")
	ErrRoundOutOfSequence    = errors.New("round started out of sequence")
	ErrWinnerAlreadyDeclared = errors.New("a different winner is already declared for this group")
	ErrRoundNotClosed        = errors.New("round is not completed yet")
	ErrTableCapacity         = errors.New("not enough free tables for the required number of groups")

	// StorageConflict surfaces a race caught by a storage constraint
	// (for example two concurrent advances). Safe to retry once after
	// re-reading state.
	ErrStorageConflict = errors.New("storage conflict detected, concurrent update lost")

	// Billing
	ErrBillingDeclined    = errors.New("entry fee payment was declined")
	ErrBillingUnavailable = errors.New("billing service unavailable")
)
