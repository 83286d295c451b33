package repository

import (
	"context"
	"fmt"

	"retos/database"
	"retos/models"
)

// BalanceHistoryRepository implements the balance journal
type BalanceHistoryRepository struct {
	q Queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx Queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	query := `
		INSERT INTO balance_history (
			alias, token, balance_before, balance_after, change_amount,
			transaction_type, transaction_metadata, related_wager_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		history.Alias,
		history.Token,
		history.BalanceBefore,
		history.BalanceAfter,
		history.ChangeAmount,
		history.TransactionType,
		history.TransactionMetadata,
		history.RelatedWagerID,
	).Scan(&history.ID, &history.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	return nil
}

// GetByAlias returns recent balance history for a user, newest first
func (r *BalanceHistoryRepository) GetByAlias(ctx context.Context, alias string, limit int) ([]*models.BalanceHistory, error) {
	query := `
		SELECT id, alias, token, balance_before, balance_after, change_amount,
		       transaction_type, transaction_metadata, related_wager_id, created_at
		FROM balance_history
		WHERE alias = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, alias, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history for %q: %w", alias, err)
	}
	defer rows.Close()

	var entries []*models.BalanceHistory
	for rows.Next() {
		var entry models.BalanceHistory
		err := rows.Scan(
			&entry.ID,
			&entry.Alias,
			&entry.Token,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.ChangeAmount,
			&entry.TransactionType,
			&entry.TransactionMetadata,
			&entry.RelatedWagerID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance history: %w", err)
	}

	return entries, nil
}
