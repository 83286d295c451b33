package service

import (
	"context"

	"retos/events"
	"retos/models"
)

// UserRepository defines the interface for the balance ledger. It is the
// exclusive owner of token balances: every mutation is delta-based and
// rejected atomically if the result would go negative.
type UserRepository interface {
	// GetByAlias retrieves a user by alias, nil if none exists
	GetByAlias(ctx context.Context, alias string) (*models.User, error)

	// Create creates a new user with the initial token grants
	Create(ctx context.Context, alias string, gold, silver int64) (*models.User, error)

	// Credit adds to a user's balance of the given token atomically
	Credit(ctx context.Context, alias string, token models.TokenKind, amount int64) error

	// Debit deducts from a user's balance of the given token atomically,
	// failing with ErrInsufficientFunds and no side effect when the balance
	// is too low
	Debit(ctx context.Context, alias string, token models.TokenKind, amount int64) error
}

// WagerRepository defines the interface for wager record persistence
type WagerRepository interface {
	// Create persists a new wager in pending state
	Create(ctx context.Context, wager *models.Wager) error

	// GetByID retrieves a wager by its ID, nil if none exists
	GetByID(ctx context.Context, id int64) (*models.Wager, error)

	// UpdateWhereVersion applies the wager's mutable fields only if the
	// stored record still carries expectedVersion, bumping the version on
	// success. Fails with ErrConflict otherwise; the caller re-reads and
	// retries. This is what makes concurrent vote intake race-free without
	// a global lock.
	UpdateWhereVersion(ctx context.Context, wager *models.Wager, expectedVersion int32) error

	// GetPendingByProposer returns pending wagers created by a user
	GetPendingByProposer(ctx context.Context, alias string) ([]*models.Wager, error)

	// GetAwaitingAcceptance returns pending wagers challenging a user
	GetAwaitingAcceptance(ctx context.Context, alias string) ([]*models.Wager, error)

	// GetOpenPublic returns pending public wagers excluding a user's own
	GetOpenPublic(ctx context.Context, excludeAlias string) ([]*models.Wager, error)
}

// WagerVoteRepository defines the interface for wager vote data access
type WagerVoteRepository interface {
	// Create appends a vote, failing with ErrDuplicateVote if the voter
	// already voted on this wager
	Create(ctx context.Context, vote *models.WagerVote) error

	// GetByWager returns all votes for a wager in append order
	GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerVote, error)
}

// BalanceHistoryRepository defines the interface for the balance journal
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByAlias returns recent balance history for a user
	GetByAlias(ctx context.Context, alias string, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	WagerRepository() WagerRepository
	WagerVoteRepository() WagerVoteRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UserService defines the interface for account operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates one with the
	// starting token grants
	GetOrCreateUser(ctx context.Context, alias string) (*models.User, error)

	// Support sends a single token of appreciation to another user, spending
	// gold when available and falling back to silver
	Support(ctx context.Context, fromAlias, toAlias string) (models.TokenKind, error)

	// GetBalanceHistory returns recent balance changes for a user
	GetBalanceHistory(ctx context.Context, alias string, limit int) ([]*models.BalanceHistory, error)
}

// WagerService defines the interface for wager lifecycle operations
type WagerService interface {
	// Propose creates a new wager, escrowing the proposer's stake
	Propose(ctx context.Context, proposerAlias string, opponentAlias *string, amount int64, condition string, visibility models.WagerVisibility) (*models.Wager, error)

	// Accept lets the challenged user (or anyone, for open public wagers)
	// match the stake and open the wager for voting
	Accept(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error)

	// Cancel refunds and cancels a pending wager; proposer only
	Cancel(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error)

	// CastVote appends a third-party vote and settles the wager once the
	// quorum verdict is reached
	CastVote(ctx context.Context, wagerID int64, voterAlias, chosenAlias string) (*models.Wager, *models.VoteCount, error)

	// Claim confirms the requester as the recorded winner of a resolved
	// wager; informational, no balance movement
	Claim(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error)

	// GetWagerByID retrieves a wager by ID
	GetWagerByID(ctx context.Context, wagerID int64) (*models.Wager, error)

	// GetWagerVotes returns the vote sequence for a wager in append order
	GetWagerVotes(ctx context.Context, wagerID int64) ([]*models.WagerVote, error)

	// ListForUser returns a user's pending proposals, challenges awaiting
	// their acceptance, and open public wagers they could accept
	ListForUser(ctx context.Context, alias string) (proposed, received, open []*models.Wager, err error)
}
