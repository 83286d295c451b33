package testutil

import (
	"time"

	"retos/models"
)

// CreateTestUser creates a test user with default token balances
func CreateTestUser(alias string) *models.User {
	now := time.Now()
	return &models.User{
		Alias:         alias,
		GoldBalance:   100,
		SilverBalance: 100,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CreateTestWager creates a pending test wager between two users
func CreateTestWager(proposer, opponent string, amount int64) *models.Wager {
	return &models.Wager{
		ProposerAlias: proposer,
		OpponentAlias: &opponent,
		Amount:        amount,
		Condition:     "test condition",
		Visibility:    models.WagerVisibilityPrivate,
		State:         models.WagerStatePending,
	}
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(alias string, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		Alias:           alias,
		Token:           models.TokenKindGold,
		BalanceBefore:   100,
		BalanceAfter:    90,
		ChangeAmount:    -10,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
		CreatedAt: time.Now(),
	}
}
