package repository

import (
	"context"
	"fmt"

	"retos/database"
	"retos/models"
	"retos/service"

	"github.com/jackc/pgx/v5"
)

// WagerVoteRepository implements wager vote data access
type WagerVoteRepository struct {
	q Queryable
}

// NewWagerVoteRepository creates a new wager vote repository
func NewWagerVoteRepository(db *database.DB) *WagerVoteRepository {
	return &WagerVoteRepository{q: db.Pool}
}

// newWagerVoteRepositoryWithTx creates a new wager vote repository with a transaction
func newWagerVoteRepositoryWithTx(tx Queryable) *WagerVoteRepository {
	return &WagerVoteRepository{q: tx}
}

// Create appends a vote. The unique (wager_id, voter_alias) constraint makes
// a second vote by the same voter match no returned row, which surfaces as
// ErrDuplicateVote.
func (r *WagerVoteRepository) Create(ctx context.Context, vote *models.WagerVote) error {
	query := `
		INSERT INTO wager_votes (wager_id, voter_alias, chosen_alias)
		VALUES ($1, $2, $3)
		ON CONFLICT (wager_id, voter_alias) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		vote.WagerID,
		vote.VoterAlias,
		vote.ChosenAlias,
	).Scan(&vote.ID, &vote.CreatedAt)

	if err == pgx.ErrNoRows {
		return fmt.Errorf("voter %q on wager %d: %w", vote.VoterAlias, vote.WagerID, service.ErrDuplicateVote)
	}
	if err != nil {
		return fmt.Errorf("failed to create vote: %w", err)
	}

	return nil
}

// GetByWager returns all votes for a wager in append order
func (r *WagerVoteRepository) GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerVote, error) {
	query := `
		SELECT id, wager_id, voter_alias, chosen_alias, created_at
		FROM wager_votes
		WHERE wager_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes for wager %d: %w", wagerID, err)
	}
	defer rows.Close()

	var votes []*models.WagerVote
	for rows.Next() {
		var vote models.WagerVote
		err := rows.Scan(
			&vote.ID,
			&vote.WagerID,
			&vote.VoterAlias,
			&vote.ChosenAlias,
			&vote.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &vote)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}

	return votes, nil
}
