package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubtable/tournament-engine/models"
)

var ErrTableNotFound = errors.New("table not found")

type TableRepository interface {
	// ListActive returns the venue's playable tables in seating order.
	ListActive(ctx context.Context) ([]models.Table, error)
	GetByID(ctx context.Context, id int) (*models.Table, error)
}

type postgresTableRepository struct {
	db *sql.DB
}

func NewPostgresTableRepository(db *sql.DB) TableRepository {
	return &postgresTableRepository{db: db}
}

func (r *postgresTableRepository) ListActive(ctx context.Context) ([]models.Table, error) {
	query := `
		SELECT id, label, sort_order, is_active, created_at
		FROM tables
		WHERE is_active = TRUE
		ORDER BY sort_order ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tables: %w", err)
	}
	defer rows.Close()

	tables := make([]models.Table, 0)
	for rows.Next() {
		var t models.Table
		if scanErr := rows.Scan(&t.ID, &t.Label, &t.SortOrder, &t.IsActive, &t.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", scanErr)
		}
		tables = append(tables, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during table rows iteration: %w", err)
	}
	return tables, nil
}

func (r *postgresTableRepository) GetByID(ctx context.Context, id int) (*models.Table, error) {
	query := `SELECT id, label, sort_order, is_active, created_at FROM tables WHERE id = $1`

	t := &models.Table{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Label, &t.SortOrder, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to scan table %d: %w", id, err)
	}
	return t, nil
}
