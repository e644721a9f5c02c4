package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clubtable/tournament-engine/models"
)

var (
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentConflict         = errors.New("tournament public id already exists")
	ErrTournamentCapacityReached  = errors.New("tournament player limit reached")
	ErrTournamentConcurrentUpdate = errors.New("tournament was updated concurrently")
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)

	// GetByIDForUpdate locks the tournament row for the duration of the
	// surrounding transaction. exec must be a transaction executor.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)

	// IncrementPlayerCount bumps player_count by one, guarded by
	// player_count < player_limit, and returns the new count.
	IncrementPlayerCount(ctx context.Context, exec SQLExecutor, id int) (int, error)

	// AdvanceCurrentRound moves current_round from roundNumber-1 to
	// roundNumber and flips the tournament to running. The compare on
	// the previous round value makes concurrent advances lose cleanly.
	AdvanceCurrentRound(ctx context.Context, exec SQLExecutor, id, roundNumber int, startedAt time.Time) error

	// Complete records the champion and the completion timestamp,
	// guarded on the current round so a stale caller cannot finish the
	// tournament twice.
	Complete(ctx context.Context, exec SQLExecutor, id, finalRound, championCustomerID int, completedAt time.Time) error

	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, public_id, name, scheduled_at, player_limit, group_size,
	total_rounds, current_round, player_count, status, entry_fee,
	currency, champion_customer_id, banner_key, started_at, completed_at,
	created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.PublicID, &t.Name, &t.ScheduledAt, &t.PlayerLimit, &t.GroupSize,
		&t.TotalRounds, &t.CurrentRound, &t.PlayerCount, &t.Status, &t.EntryFee,
		&t.Currency, &t.ChampionCustomerID, &t.BannerKey, &t.StartedAt, &t.CompletedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			public_id, name, scheduled_at, player_limit, group_size,
			total_rounds, current_round, player_count, status, entry_fee, currency
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.PublicID, t.Name, t.ScheduledAt, t.PlayerLimit, t.GroupSize,
		t.TotalRounds, t.Status, t.EntryFee, t.Currency,
	).Scan(&t.ID, &t.CreatedAt)

	if err != nil {
		if isUniqueViolation(err, "tournaments_public_id_key") {
			return ErrTournamentConflict
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE public_id = $1`

	t, err := scanTournament(r.db.QueryRowContext(ctx, query, publicID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %q: %w", publicID, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`

	t, err := scanTournament(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to lock tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`)

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(argID))
		args = append(args, *filter.Status)
		argID++
	}

	queryBuilder.WriteString(" ORDER BY scheduled_at DESC, id DESC")

	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $" + strconv.Itoa(argID))
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(" OFFSET $" + strconv.Itoa(argID))
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) IncrementPlayerCount(ctx context.Context, exec SQLExecutor, id int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET player_count = player_count + 1
		WHERE id = $1 AND player_count < player_limit
		RETURNING player_count`

	var count int
	err := executor.QueryRowContext(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The row exists (callers load it first inside the same
			// transaction), so a miss here means the guard failed.
			return 0, ErrTournamentCapacityReached
		}
		return 0, fmt.Errorf("failed to increment player count for tournament %d: %w", id, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) AdvanceCurrentRound(ctx context.Context, exec SQLExecutor, id, roundNumber int, startedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET current_round = $2,
		    status = $3,
		    started_at = COALESCE(started_at, $4)
		WHERE id = $1 AND current_round = $2 - 1 AND status IN ($5, $3)`

	result, err := executor.ExecContext(ctx, query,
		id, roundNumber, models.StatusRunning, startedAt, models.StatusUpcoming)
	if err != nil {
		return fmt.Errorf("failed to advance tournament %d to round %d: %w", id, roundNumber, err)
	}
	return checkAffectedRows(result, ErrTournamentConcurrentUpdate)
}

func (r *postgresTournamentRepository) Complete(ctx context.Context, exec SQLExecutor, id, finalRound, championCustomerID int, completedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET status = $2, champion_customer_id = $3, completed_at = $4
		WHERE id = $1 AND current_round = $5 AND status = $6 AND champion_customer_id IS NULL`

	result, err := executor.ExecContext(ctx, query,
		id, models.StatusCompleted, championCustomerID, completedAt, finalRound, models.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to complete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentConcurrentUpdate)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	query := `UPDATE tournaments SET banner_key = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d banner key: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
