package models

import "time"

// TournamentRound is one elimination stage, unique on
// (tournament_id, round_number) with round numbers starting at 1.
type TournamentRound struct {
	ID           int `json:"id"`
	TournamentID int `json:"tournament_id"`
	RoundNumber  int `json:"round_number"`

	PlayersCount int `json:"players_count"`
	GroupsCount  int `json:"groups_count"`

	// MatchesCount equals GroupsCount: the flat round-player rows are the
	// authoritative representation, one implicit match per group.
	MatchesCount     int `json:"matches_count"`
	CompletedMatches int `json:"completed_matches"`

	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// TournamentRoundPlayer records who played in which group (and at which
// table) of a round, unique on (round_id, customer_id). IsWinner is set
// exactly once, when the group's result is recorded.
type TournamentRoundPlayer struct {
	ID          int       `json:"id"`
	RoundID     int       `json:"round_id"`
	CustomerID  int       `json:"customer_id"`
	GroupNumber int       `json:"group_number"`
	TableID     *int      `json:"table_id,omitempty"`
	IsWinner    bool      `json:"is_winner"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoundTable maps a round's group to the physical table it occupies.
// Unique on (round_id, table_id) and on (round_id, group_number), which
// is the storage-level guarantee that no table hosts two groups at once.
type RoundTable struct {
	ID          int  `json:"id"`
	RoundID     int  `json:"round_id"`
	GroupNumber int  `json:"group_number"`
	TableID     *int `json:"table_id,omitempty"`
}
