package service

import (
	"context"

	"retos/events"
	"retos/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByAlias(ctx context.Context, alias string) (*models.User, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, alias string, gold, silver int64) (*models.User, error) {
	args := m.Called(ctx, alias, gold, silver)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Credit(ctx context.Context, alias string, token models.TokenKind, amount int64) error {
	args := m.Called(ctx, alias, token, amount)
	return args.Error(0)
}

func (m *MockUserRepository) Debit(ctx context.Context, alias string, token models.TokenKind, amount int64) error {
	args := m.Called(ctx, alias, token, amount)
	return args.Error(0)
}

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	args := m.Called(ctx, wager)
	return args.Error(0)
}

func (m *MockWagerRepository) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) UpdateWhereVersion(ctx context.Context, wager *models.Wager, expectedVersion int32) error {
	args := m.Called(ctx, wager, expectedVersion)
	return args.Error(0)
}

func (m *MockWagerRepository) GetPendingByProposer(ctx context.Context, alias string) ([]*models.Wager, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetAwaitingAcceptance(ctx context.Context, alias string) ([]*models.Wager, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetOpenPublic(ctx context.Context, excludeAlias string) ([]*models.Wager, error) {
	args := m.Called(ctx, excludeAlias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

// MockWagerVoteRepository is a mock implementation of WagerVoteRepository
type MockWagerVoteRepository struct {
	mock.Mock
}

func (m *MockWagerVoteRepository) Create(ctx context.Context, vote *models.WagerVote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockWagerVoteRepository) GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerVote, error) {
	args := m.Called(ctx, wagerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerVote), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByAlias(ctx context.Context, alias string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, alias, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// noopEventPublisher is the default bus for MockUnitOfWork when a test does
// not assert on published events
type noopEventPublisher struct{}

func (noopEventPublisher) Publish(event events.Event) {}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback are mock-driven; repository getters return what SetRepositories
// installed.
type MockUnitOfWork struct {
	mock.Mock
	userRepo    UserRepository
	wagerRepo   WagerRepository
	voteRepo    WagerVoteRepository
	historyRepo BalanceHistoryRepository
	eventBus    EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(users UserRepository, wagers WagerRepository, votes WagerVoteRepository, history BalanceHistoryRepository) {
	m.userRepo = users
	m.wagerRepo = wagers
	m.voteRepo = votes
	m.historyRepo = history
}

// SetEventBus installs the publisher returned by EventBus
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) WagerRepository() WagerRepository {
	return m.wagerRepo
}

func (m *MockUnitOfWork) WagerVoteRepository() WagerVoteRepository {
	return m.voteRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		return noopEventPublisher{}
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
