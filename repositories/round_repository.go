package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubtable/tournament-engine/models"
)

var (
	ErrRoundNotFound         = errors.New("tournament round not found")
	ErrRoundConflict         = errors.New("round already exists for this tournament and number")
	ErrRoundAlreadyCompleted = errors.New("round already has all matches completed")
	ErrRoundTableConflict    = errors.New("table already assigned to another group in this round")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error)
	GetByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.TournamentRound, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentRound, error)

	// IncrementCompletedMatches bumps the progress counter atomically
	// and derives is_completed in the same statement, so two groups
	// closing at the same moment cannot lose an update.
	IncrementCompletedMatches(ctx context.Context, exec SQLExecutor, roundID int) (*models.TournamentRound, error)

	// CreateRoundTables persists the group-to-table map for a round.
	// Unique constraints on (round_id, table_id) and
	// (round_id, group_number) back up the grouping validation.
	CreateRoundTables(ctx context.Context, exec SQLExecutor, roundTables []*models.RoundTable) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_rounds
			(tournament_id, round_number, players_count, groups_count, matches_count, completed_matches, is_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		round.TournamentID, round.RoundNumber, round.PlayersCount,
		round.GroupsCount, round.MatchesCount, round.CompletedMatches, round.IsCompleted,
	).Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "tournament_rounds_tournament_id_round_number_key") {
			return ErrRoundConflict
		}
		return fmt.Errorf("failed to create round %d for tournament %d: %w", round.RoundNumber, round.TournamentID, err)
	}
	return nil
}

const roundColumns = `
	id, tournament_id, round_number, players_count, groups_count,
	matches_count, completed_matches, is_completed, created_at`

func scanRound(row interface{ Scan(...interface{}) error }) (*models.TournamentRound, error) {
	round := &models.TournamentRound{}
	err := row.Scan(
		&round.ID, &round.TournamentID, &round.RoundNumber, &round.PlayersCount,
		&round.GroupsCount, &round.MatchesCount, &round.CompletedMatches,
		&round.IsCompleted, &round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundColumns + ` FROM tournament_rounds WHERE id = $1`

	round, err := scanRound(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round %d: %w", id, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundColumns + ` FROM tournament_rounds WHERE tournament_id = $1 AND round_number = $2`

	round, err := scanRound(executor.QueryRowContext(ctx, query, tournamentID, roundNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round %d of tournament %d: %w", roundNumber, tournamentID, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentRound, error) {
	query := `SELECT` + roundColumns + ` FROM tournament_rounds WHERE tournament_id = $1 ORDER BY round_number ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]models.TournamentRound, 0)
	for rows.Next() {
		round, scanErr := scanRound(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, *round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) IncrementCompletedMatches(ctx context.Context, exec SQLExecutor, roundID int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_rounds
		SET completed_matches = completed_matches + 1,
		    is_completed = (completed_matches + 1 >= matches_count)
		WHERE id = $1 AND completed_matches < matches_count
		RETURNING` + roundColumns

	round, err := scanRound(executor.QueryRowContext(ctx, query, roundID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundAlreadyCompleted
		}
		return nil, fmt.Errorf("failed to increment completed matches for round %d: %w", roundID, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) CreateRoundTables(ctx context.Context, exec SQLExecutor, roundTables []*models.RoundTable) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_round_tables (round_id, group_number, table_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	for _, rt := range roundTables {
		err := executor.QueryRowContext(ctx, query, rt.RoundID, rt.GroupNumber, rt.TableID).Scan(&rt.ID)
		if err != nil {
			if isUniqueViolation(err, "") {
				return ErrRoundTableConflict
			}
			return fmt.Errorf("failed to create round table for group %d: %w", rt.GroupNumber, err)
		}
	}
	return nil
}
