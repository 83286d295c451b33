package service

import (
	"context"
	"errors"
	"testing"

	"retos/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func strPtr(s string) *string { return &s }

func acceptedWager(id int64, proposer, opponent string, amount int64, version int32) *models.Wager {
	return &models.Wager{
		ID:            id,
		ProposerAlias: proposer,
		OpponentAlias: strPtr(opponent),
		Amount:        amount,
		Condition:     "first to the summit",
		Visibility:    models.WagerVisibilityPrivate,
		State:         models.WagerStateAccepted,
		Version:       version,
	}
}

func TestWagerService_Propose_Success(t *testing.T) {
	ctx := context.Background()

	// Setup mocks
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	// Configure unit of work
	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	proposer := &models.User{Alias: "alice", GoldBalance: 50}

	// Mock expectations
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByAlias", ctx, "alice").Return(proposer, nil)
	mockUserRepo.On("Debit", ctx, "alice", models.TokenKindGold, int64(10)).Return(nil)

	mockWagerRepo.On("Create", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.ProposerAlias == "alice" &&
			*w.OpponentAlias == "bob" &&
			w.Amount == 10 &&
			w.State == models.WagerStatePending
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Wager).ID = 42
	}).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.Alias == "alice" &&
			h.BalanceBefore == 50 &&
			h.BalanceAfter == 40 &&
			h.ChangeAmount == -10 &&
			h.TransactionType == models.TransactionTypeWagerEscrow &&
			*h.RelatedWagerID == 42
	})).Return(nil)

	wager, err := service.Propose(ctx, "alice", strPtr("bob"), 10, "first to the summit", models.WagerVisibilityPrivate)

	assert.NoError(t, err)
	assert.Equal(t, int64(42), wager.ID)
	assert.Equal(t, models.WagerStatePending, wager.State)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockWagerRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_Propose_InsufficientFunds(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	// No Commit expected; the debit failure rolls the wager creation back

	mockUserRepo.On("GetByAlias", ctx, "alice").Return(&models.User{Alias: "alice", GoldBalance: 5}, nil)
	mockUserRepo.On("Debit", ctx, "alice", models.TokenKindGold, int64(10)).Return(ErrInsufficientFunds)

	wager, err := service.Propose(ctx, "alice", strPtr("bob"), 10, "first to the summit", models.WagerVisibilityPrivate)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Nil(t, wager)

	mockUoW.AssertExpectations(t)
	mockWagerRepo.AssertNotCalled(t, "Create")
	mockHistoryRepo.AssertNotCalled(t, "Record")
}

func TestWagerService_Propose_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	// Validation failures never reach the unit of work
	mockFactory := new(MockUnitOfWorkFactory)
	service := NewWagerService(mockFactory, 3, 3)

	_, err := service.Propose(ctx, "alice", strPtr("bob"), 0, "condition", models.WagerVisibilityPrivate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stake must be at least 1")

	_, err = service.Propose(ctx, "alice", strPtr("bob"), 10, "", models.WagerVisibilityPrivate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "condition cannot be empty")

	_, err = service.Propose(ctx, "alice", strPtr("alice"), 10, "condition", models.WagerVisibilityPrivate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "with yourself")

	_, err = service.Propose(ctx, "alice", nil, 10, "condition", models.WagerVisibilityPrivate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "named opponent")

	mockFactory.AssertNotCalled(t, "Create")
}

func TestWagerService_Propose_CreateFails_RollsBackEscrow(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	// No Commit: the rollback must restore the escrowed stake

	mockUserRepo.On("GetByAlias", ctx, "alice").Return(&models.User{Alias: "alice", GoldBalance: 50}, nil)
	mockUserRepo.On("Debit", ctx, "alice", models.TokenKindGold, int64(10)).Return(nil)
	mockWagerRepo.On("Create", ctx, mock.Anything).Return(errors.New("database error"))

	wager, err := service.Propose(ctx, "alice", strPtr("bob"), 10, "first to the summit", models.WagerVisibilityPrivate)

	assert.Error(t, err)
	assert.Nil(t, wager)
	assert.Contains(t, err.Error(), "failed to create wager")

	mockUoW.AssertExpectations(t)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestWagerService_Accept_Success(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	pending := &models.Wager{
		ID:            7,
		ProposerAlias: "alice",
		OpponentAlias: strPtr("bob"),
		Amount:        10,
		Condition:     "first to the summit",
		Visibility:    models.WagerVisibilityPrivate,
		State:         models.WagerStatePending,
		Version:       1,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(pending, nil)
	mockUserRepo.On("GetByAlias", ctx, "bob").Return(&models.User{Alias: "bob", GoldBalance: 30}, nil)
	mockUserRepo.On("Debit", ctx, "bob", models.TokenKindGold, int64(10)).Return(nil)

	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.State == models.WagerStateAccepted &&
			*w.OpponentAlias == "bob" &&
			w.AcceptedAt != nil
	}), int32(1)).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.Alias == "bob" &&
			h.BalanceBefore == 30 &&
			h.BalanceAfter == 20 &&
			h.TransactionType == models.TransactionTypeWagerEscrow
	})).Return(nil)

	wager, err := service.Accept(ctx, 7, "bob")

	assert.NoError(t, err)
	assert.Equal(t, models.WagerStateAccepted, wager.State)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockWagerRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_Accept_WrongUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	pending := &models.Wager{
		ID:            7,
		ProposerAlias: "alice",
		OpponentAlias: strPtr("bob"),
		Amount:        10,
		State:         models.WagerStatePending,
		Version:       1,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(pending, nil)

	wager, err := service.Accept(ctx, 7, "carol")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, wager)

	mockUserRepo.AssertNotCalled(t, "Debit")
}

func TestWagerService_Accept_AfterCancel(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	cancelled := &models.Wager{
		ID:            7,
		ProposerAlias: "alice",
		OpponentAlias: strPtr("bob"),
		Amount:        10,
		State:         models.WagerStateCancelled,
		Version:       2,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(cancelled, nil)

	wager, err := service.Accept(ctx, 7, "bob")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, wager)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestWagerService_Cancel_Success(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	pending := &models.Wager{
		ID:            7,
		ProposerAlias: "alice",
		OpponentAlias: strPtr("bob"),
		Amount:        10,
		State:         models.WagerStatePending,
		Version:       1,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(pending, nil)
	mockUserRepo.On("GetByAlias", ctx, "alice").Return(&models.User{Alias: "alice", GoldBalance: 40}, nil)
	mockUserRepo.On("Credit", ctx, "alice", models.TokenKindGold, int64(10)).Return(nil)

	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.State == models.WagerStateCancelled
	}), int32(1)).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.Alias == "alice" &&
			h.BalanceBefore == 40 &&
			h.BalanceAfter == 50 &&
			h.TransactionType == models.TransactionTypeWagerRefund
	})).Return(nil)

	wager, err := service.Cancel(ctx, 7, "alice")

	assert.NoError(t, err)
	assert.Equal(t, models.WagerStateCancelled, wager.State)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockWagerRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_Cancel_NotProposer(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	pending := &models.Wager{
		ID:            7,
		ProposerAlias: "alice",
		OpponentAlias: strPtr("bob"),
		Amount:        10,
		State:         models.WagerStatePending,
		Version:       1,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(pending, nil)

	wager, err := service.Cancel(ctx, 7, "bob")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, wager)
	mockUserRepo.AssertNotCalled(t, "Credit")
}

func TestWagerService_CastVote_BelowQuorum(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.MatchedBy(func(v *models.WagerVote) bool {
		return v.WagerID == 7 && v.VoterAlias == "carol" && v.ChosenAlias == "alice"
	})).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "dave", ChosenAlias: "bob"},
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
	}, nil)

	// The version bumps on every appended vote even without a verdict
	mockWagerRepo.On("UpdateWhereVersion", ctx, wager, int32(2)).Return(nil)

	result, counts, err := service.CastVote(ctx, 7, "carol", "alice")

	assert.NoError(t, err)
	assert.Equal(t, models.WagerStateAccepted, result.State)
	assert.Equal(t, 1, counts.ProposerVotes)
	assert.Equal(t, 1, counts.OpponentVotes)
	assert.Equal(t, 2, counts.TotalVotes)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertNotCalled(t, "Credit")
	mockHistoryRepo.AssertNotCalled(t, "Record")
}

func TestWagerService_CastVote_MajorityPaysProposer(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 4)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
		{WagerID: 7, VoterAlias: "dave", ChosenAlias: "bob"},
		{WagerID: 7, VoterAlias: "erin", ChosenAlias: "alice"},
	}, nil)

	// Winner receives both stakes
	mockUserRepo.On("GetByAlias", ctx, "alice").Return(&models.User{Alias: "alice", GoldBalance: 40}, nil)
	mockUserRepo.On("Credit", ctx, "alice", models.TokenKindGold, int64(20)).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.Alias == "alice" &&
			h.BalanceBefore == 40 &&
			h.BalanceAfter == 60 &&
			h.ChangeAmount == 20 &&
			h.TransactionType == models.TransactionTypeWagerWin
	})).Return(nil)

	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.State == models.WagerStateResolved &&
			*w.WinnerAlias == "alice" &&
			w.ResolvedAt != nil
	}), int32(4)).Return(nil)

	result, counts, err := service.CastVote(ctx, 7, "erin", "alice")

	assert.NoError(t, err)
	assert.Equal(t, models.WagerStateResolved, result.State)
	assert.Equal(t, "alice", *result.WinnerAlias)
	assert.Equal(t, 2, counts.ProposerVotes)
	assert.Equal(t, 1, counts.OpponentVotes)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockWagerRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_CastVote_MajorityPaysOpponent(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 4)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
		{WagerID: 7, VoterAlias: "dave", ChosenAlias: "bob"},
		{WagerID: 7, VoterAlias: "erin", ChosenAlias: "bob"},
	}, nil)

	mockUserRepo.On("GetByAlias", ctx, "bob").Return(&models.User{Alias: "bob", GoldBalance: 20}, nil)
	mockUserRepo.On("Credit", ctx, "bob", models.TokenKindGold, int64(20)).Return(nil)
	mockHistoryRepo.On("Record", ctx, mock.Anything).Return(nil)

	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.State == models.WagerStateResolved && *w.WinnerAlias == "bob"
	}), int32(4)).Return(nil)

	result, _, err := service.CastVote(ctx, 7, "erin", "bob")

	assert.NoError(t, err)
	assert.Equal(t, "bob", *result.WinnerAlias)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
}

func TestWagerService_CastVote_TieRefundsBoth(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	// Even quorum makes a tie reachable
	service := NewWagerService(mockFactory, 4, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 5)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
		{WagerID: 7, VoterAlias: "dave", ChosenAlias: "bob"},
		{WagerID: 7, VoterAlias: "erin", ChosenAlias: "alice"},
		{WagerID: 7, VoterAlias: "frank", ChosenAlias: "bob"},
	}, nil)

	// Each participant gets their own stake back, not the pot
	mockUserRepo.On("GetByAlias", ctx, "alice").Return(&models.User{Alias: "alice", GoldBalance: 40}, nil)
	mockUserRepo.On("GetByAlias", ctx, "bob").Return(&models.User{Alias: "bob", GoldBalance: 20}, nil)
	mockUserRepo.On("Credit", ctx, "alice", models.TokenKindGold, int64(10)).Return(nil)
	mockUserRepo.On("Credit", ctx, "bob", models.TokenKindGold, int64(10)).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeWagerDrawRefund && h.ChangeAmount == 10
	})).Return(nil).Twice()

	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.State == models.WagerStateDraw && w.WinnerAlias == nil
	}), int32(5)).Return(nil)

	result, counts, err := service.CastVote(ctx, 7, "frank", "bob")

	assert.NoError(t, err)
	assert.Equal(t, models.WagerStateDraw, result.State)
	assert.Equal(t, 2, counts.ProposerVotes)
	assert.Equal(t, 2, counts.OpponentVotes)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_CastVote_SelfVote(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, mockVoteRepo, nil)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)

	_, _, err := service.CastVote(ctx, 7, "alice", "alice")

	assert.ErrorIs(t, err, ErrSelfVote)
	mockVoteRepo.AssertNotCalled(t, "Create")
	// A participant's vote is rejected permanently, not retried
	mockFactory.AssertNumberOfCalls(t, "Create", 1)
}

func TestWagerService_CastVote_InvalidChoice(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, mockVoteRepo, nil)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)

	_, _, err := service.CastVote(ctx, 7, "carol", "dave")

	assert.ErrorIs(t, err, ErrInvalidChoice)
	mockVoteRepo.AssertNotCalled(t, "Create")
}

func TestWagerService_CastVote_DuplicateVote(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, mockVoteRepo, nil)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(ErrDuplicateVote)

	_, _, err := service.CastVote(ctx, 7, "carol", "alice")

	assert.ErrorIs(t, err, ErrDuplicateVote)
	mockVoteRepo.AssertNotCalled(t, "GetByWager")
	mockFactory.AssertNumberOfCalls(t, "Create", 1)
}

func TestWagerService_CastVote_TerminalWager(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, mockVoteRepo, nil)

	service := NewWagerService(mockFactory, 3, 3)

	resolved := acceptedWager(7, "alice", "bob", 10, 5)
	resolved.State = models.WagerStateResolved
	resolved.WinnerAlias = strPtr("alice")

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(resolved, nil)

	// Votes after resolution cannot alter the outcome
	_, _, err := service.CastVote(ctx, 7, "frank", "alice")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	mockVoteRepo.AssertNotCalled(t, "Create")
}

func TestWagerService_CastVote_ConflictRetries(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, mockWagerRepo, mockVoteRepo, mockHistoryRepo)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
	}, nil)

	// First attempt loses the version race, second succeeds
	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.Anything, int32(2)).Return(ErrConflict).Once()
	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.Anything, int32(2)).Return(nil).Once()

	result, counts, err := service.CastVote(ctx, 7, "carol", "alice")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 1, counts.TotalVotes)

	mockFactory.AssertNumberOfCalls(t, "Create", 2)
	mockWagerRepo.AssertExpectations(t)
}

func TestWagerService_CastVote_ConflictExhausted(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockVoteRepo := new(MockWagerVoteRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, mockVoteRepo, nil)

	service := NewWagerService(mockFactory, 3, 1)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)
	mockVoteRepo.On("Create", ctx, mock.Anything).Return(nil)
	mockVoteRepo.On("GetByWager", ctx, int64(7)).Return([]*models.WagerVote{
		{WagerID: 7, VoterAlias: "carol", ChosenAlias: "alice"},
	}, nil)
	mockWagerRepo.On("UpdateWhereVersion", ctx, mock.Anything, int32(2)).Return(ErrConflict)

	_, _, err := service.CastVote(ctx, 7, "carol", "alice")

	assert.ErrorIs(t, err, ErrConflict)
	// retryLimit 1 allows the initial attempt plus one retry
	mockFactory.AssertNumberOfCalls(t, "Create", 2)
}

func TestWagerService_Claim(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	resolved := acceptedWager(7, "alice", "bob", 10, 5)
	resolved.State = models.WagerStateResolved
	resolved.WinnerAlias = strPtr("alice")

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(resolved, nil)

	wager, err := service.Claim(ctx, 7, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "alice", *wager.WinnerAlias)

	// The loser cannot claim
	_, err = service.Claim(ctx, 7, "bob")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWagerService_Claim_Unresolved(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	wager := acceptedWager(7, "alice", "bob", 10, 2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetByID", ctx, int64(7)).Return(wager, nil)

	_, err := service.Claim(ctx, 7, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWagerService_ListForUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)

	mockUoW.SetRepositories(nil, mockWagerRepo, nil, nil)

	service := NewWagerService(mockFactory, 3, 3)

	mine := []*models.Wager{{ID: 1, ProposerAlias: "alice"}}
	challenges := []*models.Wager{{ID: 2, ProposerAlias: "bob", OpponentAlias: strPtr("alice")}}
	public := []*models.Wager{{ID: 3, ProposerAlias: "carol", Visibility: models.WagerVisibilityPublic}}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockWagerRepo.On("GetPendingByProposer", ctx, "alice").Return(mine, nil)
	mockWagerRepo.On("GetAwaitingAcceptance", ctx, "alice").Return(challenges, nil)
	mockWagerRepo.On("GetOpenPublic", ctx, "alice").Return(public, nil)

	proposed, received, open, err := service.ListForUser(ctx, "alice")

	assert.NoError(t, err)
	assert.Equal(t, mine, proposed)
	assert.Equal(t, challenges, received)
	assert.Equal(t, public, open)

	mockWagerRepo.AssertExpectations(t)
}
