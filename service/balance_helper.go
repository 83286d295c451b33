package service

import (
	"context"
	"fmt"

	"retos/events"
	"retos/models"
)

// RecordBalanceChange records a balance history entry and emits the matching
// event. This is the single entry point for journaling balance changes.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed to the real bus only after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		Alias:           history.Alias,
		Token:           history.Token,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}
