package repository

import (
	"context"
	"fmt"

	"retos/database"
	"retos/models"
	"retos/service"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the ledger over the users table. All balance
// mutations are delta-based conditional updates: a debit that would go
// negative matches zero rows and fails without side effect.
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByAlias retrieves a user by alias
func (r *UserRepository) GetByAlias(ctx context.Context, alias string) (*models.User, error) {
	query := `
		SELECT alias, gold_balance, silver_balance, created_at, updated_at
		FROM users
		WHERE alias = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, alias).Scan(
		&user.Alias,
		&user.GoldBalance,
		&user.SilverBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", alias, err)
	}

	return &user, nil
}

// Create creates a new user with the initial token grants
func (r *UserRepository) Create(ctx context.Context, alias string, gold, silver int64) (*models.User, error) {
	query := `
		INSERT INTO users (alias, gold_balance, silver_balance)
		VALUES ($1, $2, $3)
		RETURNING alias, gold_balance, silver_balance, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, alias, gold, silver).Scan(
		&user.Alias,
		&user.GoldBalance,
		&user.SilverBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", alias, err)
	}

	return &user, nil
}

// Credit adds to a user's balance atomically
func (r *UserRepository) Credit(ctx context.Context, alias string, token models.TokenKind, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	column, err := balanceColumn(token)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %s = %s + $1, updated_at = NOW()
		WHERE alias = $2
	`, column, column)

	result, err := r.q.Exec(ctx, query, amount, alias)
	if err != nil {
		return fmt.Errorf("failed to credit user %q: %w", alias, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %q: %w", alias, service.ErrNotFound)
	}

	return nil
}

// Debit deducts from a user's balance atomically, failing if the balance is
// insufficient. The balance guard lives in the WHERE clause so two racing
// debits against the same user can never both succeed when only one could.
func (r *UserRepository) Debit(ctx context.Context, alias string, token models.TokenKind, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	column, err := balanceColumn(token)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %s = %s - $1, updated_at = NOW()
		WHERE alias = $2 AND %s >= $1
	`, column, column, column)

	result, err := r.q.Exec(ctx, query, amount, alias)
	if err != nil {
		return fmt.Errorf("failed to debit user %q: %w", alias, err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing account from an empty one
		user, err := r.GetByAlias(ctx, alias)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %q: %w", alias, service.ErrNotFound)
		}
		return fmt.Errorf("need %d %s: %w", amount, token, service.ErrInsufficientFunds)
	}

	return nil
}

func balanceColumn(token models.TokenKind) (string, error) {
	switch token {
	case models.TokenKindGold:
		return "gold_balance", nil
	case models.TokenKindSilver:
		return "silver_balance", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", token)
	}
}
