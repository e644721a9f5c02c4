package models

import (
	"math"
	"time"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusRunning   TournamentStatus = "running"
	StatusCompleted TournamentStatus = "completed"
	StatusCancelled TournamentStatus = "cancelled"
	StatusPostponed TournamentStatus = "postponed"
)

// IsTerminal reports whether no further status transition is allowed.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Tournament is an elimination tournament played at the venue's tables.
// Players are partitioned into groups of GroupSize each round; every
// group produces one winner and winners advance until one remains.
type Tournament struct {
	ID       int    `json:"id"`
	PublicID string `json:"public_id"`
	Name     string `json:"name"`

	ScheduledAt time.Time `json:"scheduled_at"`

	PlayerLimit int `json:"player_limit"`
	GroupSize   int `json:"group_size"`

	// TotalRounds is the estimate computed at creation time,
	// ceil(log_GroupSize(PlayerLimit)). Byes and uneven groups can shift
	// the real round count, so it is never used as a stop condition.
	TotalRounds int `json:"total_rounds"`

	// CurrentRound is 0 until round 1 is started.
	CurrentRound int `json:"current_round"`
	PlayerCount  int `json:"player_count"`

	Status TournamentStatus `json:"status"`

	EntryFee int64  `json:"entry_fee"`
	Currency string `json:"currency"`

	ChampionCustomerID *int `json:"champion_customer_id,omitempty"`

	BannerKey *string `json:"-"`
	BannerURL *string `json:"banner_url,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Optional related entities, loaded on demand.
	Players []TournamentPlayer `json:"players,omitempty"`
	Rounds  []TournamentRound  `json:"rounds,omitempty"`
}

// EstimateTotalRounds returns ceil(log_groupSize(playerLimit)).
// Advisory only: the authoritative stop condition for a tournament is
// "exactly one winner remains".
func EstimateTotalRounds(playerLimit, groupSize int) int {
	if playerLimit < 2 || groupSize < 2 {
		return 0
	}
	return int(math.Ceil(math.Log(float64(playerLimit)) / math.Log(float64(groupSize))))
}
