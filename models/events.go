package models

// Event types broadcast to tournament rooms over the live hub.
// Delivery is fire-and-forget: the tournament flow never blocks on or
// retries it.
const (
	EventPlayerRegistered    = "PLAYER_REGISTERED"
	EventRoundStarted        = "ROUND_STARTED"
	EventMatchResult         = "MATCH_RESULT"
	EventTournamentCompleted = "TOURNAMENT_COMPLETED"
	EventTournamentCancelled = "TOURNAMENT_CANCELLED"
)

type PlayerRegisteredPayload struct {
	TournamentID int `json:"tournament_id"`
	CustomerID   int `json:"customer_id"`
	PlayerCount  int `json:"player_count"`
	PlayerLimit  int `json:"player_limit"`
}

type GroupPayload struct {
	GroupNumber int   `json:"group_number"`
	TableID     *int  `json:"table_id,omitempty"`
	PlayerIDs   []int `json:"player_ids"`
	IsBye       bool  `json:"is_bye,omitempty"`
}

type RoundStartedPayload struct {
	TournamentID int            `json:"tournament_id"`
	RoundNumber  int            `json:"round_number"`
	Groups       []GroupPayload `json:"groups"`
}

type MatchResultPayload struct {
	TournamentID     int `json:"tournament_id"`
	RoundNumber      int `json:"round_number"`
	GroupNumber      int `json:"group_number"`
	WinnerCustomerID int `json:"winner_customer_id"`
	CompletedMatches int `json:"completed_matches"`
	MatchesCount     int `json:"matches_count"`
}

type TournamentCompletedPayload struct {
	TournamentID       int `json:"tournament_id"`
	ChampionCustomerID int `json:"champion_customer_id"`
	RoundsPlayed       int `json:"rounds_played"`
}

type TournamentCancelledPayload struct {
	TournamentID int `json:"tournament_id"`
}
