package service

import (
	"context"
	"fmt"

	"retos/events"
	"retos/models"
)

type userService struct {
	uowFactory     UnitOfWorkFactory
	startingGold   int64
	startingSilver int64
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, startingGold, startingSilver int64) UserService {
	return &userService{
		uowFactory:     uowFactory,
		startingGold:   startingGold,
		startingSilver: startingSilver,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with the
// starting token grants
func (s *userService) GetOrCreateUser(ctx context.Context, alias string) (*models.User, error) {
	if alias == "" {
		return nil, fmt.Errorf("alias cannot be empty")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	// Database unique constraint on alias prevents duplicate accounts
	user, err = uow.UserRepository().Create(ctx, alias, s.startingGold, s.startingSilver)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Journal the grants so the ledger starts from a recorded zero
	for _, grant := range []struct {
		token  models.TokenKind
		amount int64
	}{
		{models.TokenKindGold, s.startingGold},
		{models.TokenKindSilver, s.startingSilver},
	} {
		if grant.amount == 0 {
			continue
		}
		history := &models.BalanceHistory{
			Alias:           alias,
			Token:           grant.token,
			BalanceBefore:   0,
			BalanceAfter:    grant.amount,
			ChangeAmount:    grant.amount,
			TransactionType: models.TransactionTypeInitial,
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
	}

	uow.EventBus().Publish(events.UserCreatedEvent{
		Alias:         alias,
		InitialGold:   s.startingGold,
		InitialSilver: s.startingSilver,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// Support sends a single token of appreciation to another user. Gold is
// spent when available, falling back to silver; the recipient receives the
// same token kind.
func (s *userService) Support(ctx context.Context, fromAlias, toAlias string) (models.TokenKind, error) {
	if fromAlias == toAlias {
		return "", fmt.Errorf("cannot support yourself")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	sender, err := uow.UserRepository().GetByAlias(ctx, fromAlias)
	if err != nil {
		return "", fmt.Errorf("failed to get sender: %w", err)
	}
	if sender == nil {
		return "", fmt.Errorf("sender %q: %w", fromAlias, ErrNotFound)
	}

	recipient, err := uow.UserRepository().GetByAlias(ctx, toAlias)
	if err != nil {
		return "", fmt.Errorf("failed to get recipient: %w", err)
	}
	if recipient == nil {
		return "", fmt.Errorf("recipient %q: %w", toAlias, ErrNotFound)
	}

	// Prefer gold, fall back to silver
	token := models.TokenKindGold
	senderBefore := sender.GoldBalance
	recipientBefore := recipient.GoldBalance
	if sender.GoldBalance < 1 {
		token = models.TokenKindSilver
		senderBefore = sender.SilverBalance
		recipientBefore = recipient.SilverBalance
		if sender.SilverBalance < 1 {
			return "", fmt.Errorf("no tokens to give: %w", ErrInsufficientFunds)
		}
	}

	// Composed as atomic debit-then-credit; the transaction guarantees the
	// credit never lands without the debit
	if err := uow.UserRepository().Debit(ctx, fromAlias, token, 1); err != nil {
		return "", fmt.Errorf("failed to debit support token: %w", err)
	}
	if err := uow.UserRepository().Credit(ctx, toAlias, token, 1); err != nil {
		return "", fmt.Errorf("failed to credit support token: %w", err)
	}

	sentHistory := &models.BalanceHistory{
		Alias:           fromAlias,
		Token:           token,
		BalanceBefore:   senderBefore,
		BalanceAfter:    senderBefore - 1,
		ChangeAmount:    -1,
		TransactionType: models.TransactionTypeSupportSent,
		TransactionMetadata: map[string]any{
			"recipient": toAlias,
		},
	}
	if err := RecordBalanceChange(ctx, uow, sentHistory); err != nil {
		return "", fmt.Errorf("failed to record support sent: %w", err)
	}

	receivedHistory := &models.BalanceHistory{
		Alias:           toAlias,
		Token:           token,
		BalanceBefore:   recipientBefore,
		BalanceAfter:    recipientBefore + 1,
		ChangeAmount:    1,
		TransactionType: models.TransactionTypeSupportReceived,
		TransactionMetadata: map[string]any{
			"sender": fromAlias,
		},
	}
	if err := RecordBalanceChange(ctx, uow, receivedHistory); err != nil {
		return "", fmt.Errorf("failed to record support received: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return token, nil
}

// GetBalanceHistory returns recent balance changes for a user
func (s *userService) GetBalanceHistory(ctx context.Context, alias string, limit int) ([]*models.BalanceHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByAlias(ctx, alias, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}

	return history, nil
}
