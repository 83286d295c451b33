package service

import (
	"errors"
)

// Settlement error taxonomy. All engine failures are value-returned and
// matched with errors.Is at the API boundary; none are fatal to the process.
var (
	// ErrInsufficientFunds means a stake or acceptance exceeds the available
	// balance. The wager and both balances are left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition means an operation was attempted against a wager
	// not in the required state, or by an unauthorized actor.
	ErrInvalidTransition = errors.New("invalid wager transition")

	// ErrDuplicateVote means the voter is already present in the vote sequence.
	ErrDuplicateVote = errors.New("voter has already voted on this wager")

	// ErrSelfVote means the voter is the proposer or the opponent.
	ErrSelfVote = errors.New("wager participants cannot vote on their own wager")

	// ErrInvalidChoice means the chosen side is not one of the participants.
	ErrInvalidChoice = errors.New("chosen side is not a wager participant")

	// ErrConflict is a transient optimistic-concurrency collision. Vote
	// intake retries these internally up to a bound before surfacing.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrNotFound means the wager or user does not exist.
	ErrNotFound = errors.New("not found")
)
