package repository

import (
	"context"
	"fmt"

	"retos/database"
	"retos/models"
	"retos/service"

	"github.com/jackc/pgx/v5"
)

// WagerRepository implements wager record persistence with optimistic
// concurrency: every mutation goes through a version-guarded update.
type WagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx Queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

const wagerColumns = `
	id, proposer_alias, opponent_alias, amount, condition, visibility,
	state, winner_alias, version, created_at, accepted_at, resolved_at
`

// Create creates a new wager in pending state
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (proposer_alias, opponent_alias, amount, condition, visibility, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, version, created_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.ProposerAlias,
		wager.OpponentAlias,
		wager.Amount,
		wager.Condition,
		wager.Visibility,
		wager.State,
	).Scan(&wager.ID, &wager.Version, &wager.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create wager: %w", err)
	}

	return nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %d: %w", id, err)
	}

	return wager, nil
}

// UpdateWhereVersion applies the wager's mutable fields only if the stored
// record still carries expectedVersion. Matching zero rows means another
// writer got there first; the caller re-reads and retries.
func (r *WagerRepository) UpdateWhereVersion(ctx context.Context, wager *models.Wager, expectedVersion int32) error {
	query := `
		UPDATE wagers
		SET opponent_alias = $1,
		    state = $2,
		    winner_alias = $3,
		    accepted_at = $4,
		    resolved_at = $5,
		    version = version + 1
		WHERE id = $6 AND version = $7
	`

	result, err := r.q.Exec(ctx, query,
		wager.OpponentAlias,
		wager.State,
		wager.WinnerAlias,
		wager.AcceptedAt,
		wager.ResolvedAt,
		wager.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update wager %d: %w", wager.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("wager %d at version %d: %w", wager.ID, expectedVersion, service.ErrConflict)
	}

	wager.Version = expectedVersion + 1
	return nil
}

// GetPendingByProposer returns pending wagers created by a user
func (r *WagerRepository) GetPendingByProposer(ctx context.Context, alias string) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE proposer_alias = $1 AND state = 'pending'
		ORDER BY created_at DESC
	`
	return r.queryWagers(ctx, query, alias)
}

// GetAwaitingAcceptance returns pending wagers challenging a user
func (r *WagerRepository) GetAwaitingAcceptance(ctx context.Context, alias string) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE opponent_alias = $1 AND state = 'pending'
		ORDER BY created_at DESC
	`
	return r.queryWagers(ctx, query, alias)
}

// GetOpenPublic returns pending public wagers excluding a user's own
func (r *WagerRepository) GetOpenPublic(ctx context.Context, excludeAlias string) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE visibility = 'public'
		  AND state = 'pending'
		  AND proposer_alias <> $1
		  AND (opponent_alias IS NULL OR opponent_alias <> $1)
		ORDER BY created_at DESC
	`
	return r.queryWagers(ctx, query, excludeAlias)
}

func (r *WagerRepository) queryWagers(ctx context.Context, query string, args ...any) ([]*models.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}

	return wagers, nil
}

func scanWager(row pgx.Row) (*models.Wager, error) {
	var wager models.Wager
	err := row.Scan(
		&wager.ID,
		&wager.ProposerAlias,
		&wager.OpponentAlias,
		&wager.Amount,
		&wager.Condition,
		&wager.Visibility,
		&wager.State,
		&wager.WinnerAlias,
		&wager.Version,
		&wager.CreatedAt,
		&wager.AcceptedAt,
		&wager.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wager, nil
}
