package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial         TransactionType = "initial"
	TransactionTypeWagerEscrow     TransactionType = "wager_escrow"
	TransactionTypeWagerRefund     TransactionType = "wager_refund"
	TransactionTypeWagerWin        TransactionType = "wager_win"
	TransactionTypeWagerDrawRefund TransactionType = "wager_draw_refund"
	TransactionTypeSupportSent     TransactionType = "support_sent"
	TransactionTypeSupportReceived TransactionType = "support_received"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	Alias               string          `db:"alias"`
	Token               TokenKind       `db:"token"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedWagerID      *int64          `db:"related_wager_id"`
	CreatedAt           time.Time       `db:"created_at"`
}
