package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retos/events"
	"retos/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

type wagerService struct {
	uowFactory UnitOfWorkFactory
	quorum     int
	retryLimit int
}

// NewWagerService creates a new wager lifecycle service. quorum is the number
// of votes required before a verdict is computed; retryLimit bounds the
// internal retries on optimistic-concurrency conflicts during vote intake.
func NewWagerService(uowFactory UnitOfWorkFactory, quorum, retryLimit int) WagerService {
	return &wagerService{
		uowFactory: uowFactory,
		quorum:     quorum,
		retryLimit: retryLimit,
	}
}

// Propose creates a new wager proposal, escrowing the proposer's stake.
// The debit and the record insert run inside one unit of work: if the insert
// fails the rollback restores the stake, so the escrow invariant holds even
// on partial failure.
func (s *wagerService) Propose(ctx context.Context, proposerAlias string, opponentAlias *string, amount int64, condition string, visibility models.WagerVisibility) (*models.Wager, error) {
	// Validate inputs
	if amount < 1 {
		return nil, fmt.Errorf("stake must be at least 1 gold token")
	}
	if condition == "" {
		return nil, fmt.Errorf("wager condition cannot be empty")
	}
	if opponentAlias != nil && *opponentAlias == proposerAlias {
		return nil, fmt.Errorf("cannot create a wager with yourself")
	}
	if visibility != models.WagerVisibilityPrivate && visibility != models.WagerVisibilityPublic {
		return nil, fmt.Errorf("invalid visibility %q", visibility)
	}
	if opponentAlias == nil && visibility != models.WagerVisibilityPublic {
		return nil, fmt.Errorf("private wagers require a named opponent")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	proposer, err := uow.UserRepository().GetByAlias(ctx, proposerAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposer: %w", err)
	}
	if proposer == nil {
		return nil, fmt.Errorf("proposer %q: %w", proposerAlias, ErrNotFound)
	}

	// Escrow the stake up front
	if err := uow.UserRepository().Debit(ctx, proposerAlias, models.TokenKindGold, amount); err != nil {
		return nil, fmt.Errorf("failed to escrow stake: %w", err)
	}

	wager := &models.Wager{
		ProposerAlias: proposerAlias,
		OpponentAlias: opponentAlias,
		Amount:        amount,
		Condition:     condition,
		Visibility:    visibility,
		State:         models.WagerStatePending,
	}

	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	history := &models.BalanceHistory{
		Alias:           proposerAlias,
		Token:           models.TokenKindGold,
		BalanceBefore:   proposer.GoldBalance,
		BalanceAfter:    proposer.GoldBalance - amount,
		ChangeAmount:    -amount,
		TransactionType: models.TransactionTypeWagerEscrow,
		TransactionMetadata: map[string]any{
			"condition": condition,
		},
		RelatedWagerID: &wager.ID,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record escrow: %w", err)
	}

	opponent := ""
	if opponentAlias != nil {
		opponent = *opponentAlias
	}
	uow.EventBus().Publish(events.WagerProposedEvent{
		WagerID:       wager.ID,
		ProposerAlias: proposerAlias,
		OpponentAlias: opponent,
		Amount:        amount,
		Condition:     condition,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	wagersProposed.Inc()
	return wager, nil
}

// Accept lets the challenged user match the stake and open voting. For public
// wagers without a named opponent, the first non-proposer to accept becomes
// the opponent.
func (s *wagerService) Accept(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("wager %d: %w", wagerID, ErrNotFound)
	}
	if !wager.CanBeAccepted(requesterAlias) {
		return nil, fmt.Errorf("wager %d cannot be accepted by %q in state %q: %w",
			wagerID, requesterAlias, wager.State, ErrInvalidTransition)
	}

	requester, err := uow.UserRepository().GetByAlias(ctx, requesterAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to get requester: %w", err)
	}
	if requester == nil {
		return nil, fmt.Errorf("user %q: %w", requesterAlias, ErrNotFound)
	}

	// Any ledger failure leaves the wager record untouched
	if err := uow.UserRepository().Debit(ctx, requesterAlias, models.TokenKindGold, wager.Amount); err != nil {
		return nil, fmt.Errorf("failed to escrow matching stake: %w", err)
	}

	now := time.Now()
	expectedVersion := wager.Version
	wager.OpponentAlias = &requesterAlias
	wager.State = models.WagerStateAccepted
	wager.AcceptedAt = &now

	if err := uow.WagerRepository().UpdateWhereVersion(ctx, wager, expectedVersion); err != nil {
		return nil, fmt.Errorf("failed to update wager: %w", err)
	}

	history := &models.BalanceHistory{
		Alias:           requesterAlias,
		Token:           models.TokenKindGold,
		BalanceBefore:   requester.GoldBalance,
		BalanceAfter:    requester.GoldBalance - wager.Amount,
		ChangeAmount:    -wager.Amount,
		TransactionType: models.TransactionTypeWagerEscrow,
		TransactionMetadata: map[string]any{
			"condition": wager.Condition,
		},
		RelatedWagerID: &wager.ID,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record escrow: %w", err)
	}

	uow.EventBus().Publish(events.WagerAcceptedEvent{
		WagerID:       wager.ID,
		ProposerAlias: wager.ProposerAlias,
		OpponentAlias: requesterAlias,
		Amount:        wager.Amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return wager, nil
}

// Cancel refunds the stake and cancels a pending wager; proposer only.
func (s *wagerService) Cancel(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("wager %d: %w", wagerID, ErrNotFound)
	}
	if !wager.CanBeCancelled(requesterAlias) {
		return nil, fmt.Errorf("wager %d cannot be cancelled by %q in state %q: %w",
			wagerID, requesterAlias, wager.State, ErrInvalidTransition)
	}

	proposer, err := uow.UserRepository().GetByAlias(ctx, wager.ProposerAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposer: %w", err)
	}

	if err := uow.UserRepository().Credit(ctx, wager.ProposerAlias, models.TokenKindGold, wager.Amount); err != nil {
		return nil, fmt.Errorf("failed to refund stake: %w", err)
	}

	expectedVersion := wager.Version
	wager.State = models.WagerStateCancelled

	if err := uow.WagerRepository().UpdateWhereVersion(ctx, wager, expectedVersion); err != nil {
		return nil, fmt.Errorf("failed to update wager: %w", err)
	}

	history := &models.BalanceHistory{
		Alias:           wager.ProposerAlias,
		Token:           models.TokenKindGold,
		BalanceBefore:   proposer.GoldBalance,
		BalanceAfter:    proposer.GoldBalance + wager.Amount,
		ChangeAmount:    wager.Amount,
		TransactionType: models.TransactionTypeWagerRefund,
		RelatedWagerID:  &wager.ID,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	uow.EventBus().Publish(events.WagerCancelledEvent{
		WagerID:       wager.ID,
		ProposerAlias: wager.ProposerAlias,
		Refund:        wager.Amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return wager, nil
}

// CastVote appends a third-party vote and settles the wager when the quorum
// verdict is reached. Concurrent votes race on the wager's version; the loser
// retries against the newer record up to the configured bound.
func (s *wagerService) CastVote(ctx context.Context, wagerID int64, voterAlias, chosenAlias string) (*models.Wager, *models.VoteCount, error) {
	type voteResult struct {
		wager  *models.Wager
		counts *models.VoteCount
	}

	operation := func() (voteResult, error) {
		wager, counts, err := s.castVoteOnce(ctx, wagerID, voterAlias, chosenAlias)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				log.WithFields(log.Fields{
					"wagerID": wagerID,
					"voter":   voterAlias,
				}).Debug("Vote hit concurrent update, retrying")
				conflictRetries.Inc()
				return voteResult{}, err
			}
			return voteResult{}, backoff.Permanent(err)
		}
		return voteResult{wager, counts}, nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.retryLimit))
	result, err := backoff.RetryWithData(operation, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, nil, err
	}
	return result.wager, result.counts, nil
}

// castVoteOnce performs one vote attempt in its own unit of work
func (s *wagerService) castVoteOnce(ctx context.Context, wagerID int64, voterAlias, chosenAlias string) (*models.Wager, *models.VoteCount, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, nil, fmt.Errorf("wager %d: %w", wagerID, ErrNotFound)
	}

	// Validate the vote
	if wager.IsTerminal() || wager.State != models.WagerStateAccepted {
		return nil, nil, fmt.Errorf("wager %d is not open for voting in state %q: %w",
			wagerID, wager.State, ErrInvalidTransition)
	}
	if wager.IsParticipant(voterAlias) {
		return nil, nil, fmt.Errorf("%q: %w", voterAlias, ErrSelfVote)
	}
	if !wager.IsParticipant(chosenAlias) {
		return nil, nil, fmt.Errorf("%q: %w", chosenAlias, ErrInvalidChoice)
	}

	vote := &models.WagerVote{
		WagerID:     wagerID,
		VoterAlias:  voterAlias,
		ChosenAlias: chosenAlias,
	}
	if err := uow.WagerVoteRepository().Create(ctx, vote); err != nil {
		return nil, nil, err
	}

	// Tally the entire vote sequence, not merely the newest vote
	votes, err := uow.WagerVoteRepository().GetByWager(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get votes: %w", err)
	}

	opponent := *wager.OpponentAlias
	counts := models.TallyVotes(votes, wager.ProposerAlias, opponent)
	verdict := models.ResolveVerdict(votes, wager.ProposerAlias, opponent, s.quorum)

	expectedVersion := wager.Version
	switch verdict.Outcome {
	case models.OutcomeWinner:
		if err := s.payOutWinner(ctx, uow, wager, verdict.WinnerAlias, counts); err != nil {
			return nil, nil, err
		}
	case models.OutcomeDraw:
		if err := s.refundDraw(ctx, uow, wager); err != nil {
			return nil, nil, err
		}
	}

	// Bump the version on every appended vote so concurrent tallies are
	// linearized; the losing writer re-reads and retries
	if err := uow.WagerRepository().UpdateWhereVersion(ctx, wager, expectedVersion); err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	votesCast.Inc()
	return wager, counts, nil
}

// payOutWinner credits the combined pot to the winner and marks the wager
// resolved. Mutates the wager; the caller persists it via the version guard.
func (s *wagerService) payOutWinner(ctx context.Context, uow UnitOfWork, wager *models.Wager, winnerAlias string, counts *models.VoteCount) error {
	winner, err := uow.UserRepository().GetByAlias(ctx, winnerAlias)
	if err != nil {
		return fmt.Errorf("failed to get winner: %w", err)
	}
	if winner == nil {
		return fmt.Errorf("winner %q: %w", winnerAlias, ErrNotFound)
	}

	pot := wager.Pot()
	if err := uow.UserRepository().Credit(ctx, winnerAlias, models.TokenKindGold, pot); err != nil {
		return fmt.Errorf("failed to pay out pot: %w", err)
	}

	history := &models.BalanceHistory{
		Alias:           winnerAlias,
		Token:           models.TokenKindGold,
		BalanceBefore:   winner.GoldBalance,
		BalanceAfter:    winner.GoldBalance + pot,
		ChangeAmount:    pot,
		TransactionType: models.TransactionTypeWagerWin,
		TransactionMetadata: map[string]any{
			"opponent":        wager.Opponent(winnerAlias),
			"proposer_votes":  counts.ProposerVotes,
			"opponent_votes":  counts.OpponentVotes,
			"total_votes":     counts.TotalVotes,
			"wager_condition": wager.Condition,
		},
		RelatedWagerID: &wager.ID,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return fmt.Errorf("failed to record payout: %w", err)
	}

	now := time.Now()
	wager.State = models.WagerStateResolved
	wager.WinnerAlias = &winnerAlias
	wager.ResolvedAt = &now

	uow.EventBus().Publish(events.WagerResolvedEvent{
		WagerID:     wager.ID,
		Outcome:     models.OutcomeWinner,
		WinnerAlias: winnerAlias,
		Pot:         pot,
	})
	wagersResolved.WithLabelValues(string(models.OutcomeWinner)).Inc()

	return nil
}

// refundDraw returns each participant their stake and marks the wager a draw
func (s *wagerService) refundDraw(ctx context.Context, uow UnitOfWork, wager *models.Wager) error {
	participants := []string{wager.ProposerAlias, *wager.OpponentAlias}
	for _, alias := range participants {
		user, err := uow.UserRepository().GetByAlias(ctx, alias)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if user == nil {
			return fmt.Errorf("participant %q: %w", alias, ErrNotFound)
		}

		if err := uow.UserRepository().Credit(ctx, alias, models.TokenKindGold, wager.Amount); err != nil {
			return fmt.Errorf("failed to refund %q: %w", alias, err)
		}

		history := &models.BalanceHistory{
			Alias:           alias,
			Token:           models.TokenKindGold,
			BalanceBefore:   user.GoldBalance,
			BalanceAfter:    user.GoldBalance + wager.Amount,
			ChangeAmount:    wager.Amount,
			TransactionType: models.TransactionTypeWagerDrawRefund,
			RelatedWagerID:  &wager.ID,
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return fmt.Errorf("failed to record draw refund: %w", err)
		}
	}

	now := time.Now()
	wager.State = models.WagerStateDraw
	wager.ResolvedAt = &now

	uow.EventBus().Publish(events.WagerResolvedEvent{
		WagerID: wager.ID,
		Outcome: models.OutcomeDraw,
		Pot:     wager.Pot(),
	})
	wagersResolved.WithLabelValues(string(models.OutcomeDraw)).Inc()

	return nil
}

// Claim confirms the requester as the recorded winner of a resolved wager.
// Payout already happened at resolution, so this moves no balances.
func (s *wagerService) Claim(ctx context.Context, wagerID int64, requesterAlias string) (*models.Wager, error) {
	wager, err := s.GetWagerByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if wager == nil {
		return nil, fmt.Errorf("wager %d: %w", wagerID, ErrNotFound)
	}
	if wager.State != models.WagerStateResolved || wager.WinnerAlias == nil || *wager.WinnerAlias != requesterAlias {
		return nil, fmt.Errorf("only the recorded winner may claim wager %d: %w", wagerID, ErrInvalidTransition)
	}
	return wager, nil
}

// GetWagerByID retrieves a wager by ID
func (s *wagerService) GetWagerByID(ctx context.Context, wagerID int64) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}

	return wager, nil
}

// GetWagerVotes returns the vote sequence for a wager in append order
func (s *wagerService) GetWagerVotes(ctx context.Context, wagerID int64) ([]*models.WagerVote, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	votes, err := uow.WagerVoteRepository().GetByWager(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}

	return votes, nil
}

// ListForUser returns a user's proposals, received challenges and the open
// public wagers they could accept
func (s *wagerService) ListForUser(ctx context.Context, alias string) (proposed, received, open []*models.Wager, err error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	proposed, err = uow.WagerRepository().GetPendingByProposer(ctx, alias)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get proposed wagers: %w", err)
	}
	received, err = uow.WagerRepository().GetAwaitingAcceptance(ctx, alias)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get received wagers: %w", err)
	}
	open, err = uow.WagerRepository().GetOpenPublic(ctx, alias)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get open wagers: %w", err)
	}

	return proposed, received, open, nil
}
