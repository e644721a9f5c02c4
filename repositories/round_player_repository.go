package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubtable/tournament-engine/models"
)

var (
	ErrAssignmentNotFound = errors.New("round player assignment not found")
	ErrAssignmentConflict = errors.New("player already assigned in this round")
)

type RoundPlayerRepository interface {
	// CreateBatch persists one assignment row per player. The unique
	// (round_id, customer_id) constraint makes a double assignment fail
	// here instead of corrupting the round.
	CreateBatch(ctx context.Context, exec SQLExecutor, assignments []*models.TournamentRoundPlayer) error

	ListByRound(ctx context.Context, roundID int) ([]*models.TournamentRoundPlayer, error)

	// ListGroupForUpdate locks a group's assignment rows for the
	// surrounding transaction, serializing winner recording per group.
	ListGroupForUpdate(ctx context.Context, exec SQLExecutor, roundID, groupNumber int) ([]*models.TournamentRoundPlayer, error)

	MarkWinner(ctx context.Context, exec SQLExecutor, assignmentID int) error

	// ListWinners returns winning customer ids ordered by group number.
	ListWinners(ctx context.Context, exec SQLExecutor, roundID int) ([]int, error)
}

type postgresRoundPlayerRepository struct {
	db *sql.DB
}

func NewPostgresRoundPlayerRepository(db *sql.DB) RoundPlayerRepository {
	return &postgresRoundPlayerRepository{db: db}
}

func (r *postgresRoundPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundPlayerRepository) CreateBatch(ctx context.Context, exec SQLExecutor, assignments []*models.TournamentRoundPlayer) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_round_players (round_id, customer_id, group_number, table_id, is_winner)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	for _, a := range assignments {
		err := executor.QueryRowContext(ctx, query,
			a.RoundID, a.CustomerID, a.GroupNumber, a.TableID, a.IsWinner,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "tournament_round_players_round_id_customer_id_key") {
				return fmt.Errorf("%w: customer %d", ErrAssignmentConflict, a.CustomerID)
			}
			return fmt.Errorf("failed to create assignment for customer %d: %w", a.CustomerID, err)
		}
	}
	return nil
}

const roundPlayerColumns = `id, round_id, customer_id, group_number, table_id, is_winner, created_at`

func (r *postgresRoundPlayerRepository) scanRows(rows *sql.Rows) ([]*models.TournamentRoundPlayer, error) {
	assignments := make([]*models.TournamentRoundPlayer, 0)
	for rows.Next() {
		var a models.TournamentRoundPlayer
		if err := rows.Scan(&a.ID, &a.RoundID, &a.CustomerID, &a.GroupNumber, &a.TableID, &a.IsWinner, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round player row: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round player rows iteration: %w", err)
	}
	return assignments, nil
}

func (r *postgresRoundPlayerRepository) ListByRound(ctx context.Context, roundID int) ([]*models.TournamentRoundPlayer, error) {
	query := `SELECT ` + roundPlayerColumns + `
		FROM tournament_round_players
		WHERE round_id = $1
		ORDER BY group_number ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for round %d: %w", roundID, err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *postgresRoundPlayerRepository) ListGroupForUpdate(ctx context.Context, exec SQLExecutor, roundID, groupNumber int) ([]*models.TournamentRoundPlayer, error) {
	query := `SELECT ` + roundPlayerColumns + `
		FROM tournament_round_players
		WHERE round_id = $1 AND group_number = $2
		ORDER BY id ASC
		FOR UPDATE`

	rows, err := exec.QueryContext(ctx, query, roundID, groupNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to lock group %d of round %d: %w", groupNumber, roundID, err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *postgresRoundPlayerRepository) MarkWinner(ctx context.Context, exec SQLExecutor, assignmentID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_round_players SET is_winner = TRUE WHERE id = $1 AND is_winner = FALSE`

	result, err := executor.ExecContext(ctx, query, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to mark winner on assignment %d: %w", assignmentID, err)
	}
	return checkAffectedRows(result, ErrAssignmentNotFound)
}

func (r *postgresRoundPlayerRepository) ListWinners(ctx context.Context, exec SQLExecutor, roundID int) ([]int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT customer_id
		FROM tournament_round_players
		WHERE round_id = $1 AND is_winner = TRUE
		ORDER BY group_number ASC`

	rows, err := executor.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners for round %d: %w", roundID, err)
	}
	defer rows.Close()

	winners := make([]int, 0)
	for rows.Next() {
		var customerID int
		if scanErr := rows.Scan(&customerID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan winner row: %w", scanErr)
		}
		winners = append(winners, customerID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during winner rows iteration: %w", err)
	}
	return winners, nil
}
