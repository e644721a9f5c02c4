package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubtable/tournament-engine/models"
)

var (
	ErrPlayerNotFound          = errors.New("tournament player not found")
	ErrPlayerAlreadyRegistered = errors.New("customer is already registered for this tournament")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.TournamentPlayer) error
	UpdatePaymentRef(ctx context.Context, exec SQLExecutor, id int, paymentRef string) error
	FindByTournamentAndCustomer(ctx context.Context, tournamentID, customerID int) (*models.TournamentPlayer, error)

	// ListByTournament returns the roster in registration order, which
	// is the deterministic round-1 seating order when shuffling is off.
	// Pass the transaction executor to read under its locks.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.TournamentPlayer) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_players (tournament_id, customer_id, payment_ref)
		VALUES ($1, $2, $3)
		RETURNING id, registered_at`

	err := executor.QueryRowContext(ctx, query, p.TournamentID, p.CustomerID, p.PaymentRef).
		Scan(&p.ID, &p.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err, "tournament_players_tournament_id_customer_id_key") {
			return ErrPlayerAlreadyRegistered
		}
		return fmt.Errorf("failed to create tournament player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) UpdatePaymentRef(ctx context.Context, exec SQLExecutor, id int, paymentRef string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_players SET payment_ref = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, paymentRef, id)
	if err != nil {
		return fmt.Errorf("failed to update payment ref for player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) FindByTournamentAndCustomer(ctx context.Context, tournamentID, customerID int) (*models.TournamentPlayer, error) {
	query := `
		SELECT id, tournament_id, customer_id, payment_ref, registered_at
		FROM tournament_players
		WHERE tournament_id = $1 AND customer_id = $2`

	p := &models.TournamentPlayer{}
	err := r.db.QueryRowContext(ctx, query, tournamentID, customerID).
		Scan(&p.ID, &p.TournamentID, &p.CustomerID, &p.PaymentRef, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament player: %w", err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, customer_id, payment_ref, registered_at
		FROM tournament_players
		WHERE tournament_id = $1
		ORDER BY registered_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]*models.TournamentPlayer, 0)
	for rows.Next() {
		var p models.TournamentPlayer
		if scanErr := rows.Scan(&p.ID, &p.TournamentID, &p.CustomerID, &p.PaymentRef, &p.RegisteredAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament player row: %w", scanErr)
		}
		players = append(players, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresPlayerRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_players WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete players for tournament %d: %w", tournamentID, err)
	}
	return nil
}
