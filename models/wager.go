package models

import (
	"time"
)

// WagerState represents the state of a wager
type WagerState string

const (
	WagerStatePending   WagerState = "pending"
	WagerStateAccepted  WagerState = "accepted"
	WagerStateResolved  WagerState = "resolved"
	WagerStateDraw      WagerState = "draw"
	WagerStateCancelled WagerState = "cancelled"
)

// WagerVisibility controls who may accept a wager
type WagerVisibility string

const (
	WagerVisibilityPrivate WagerVisibility = "private"
	WagerVisibilityPublic  WagerVisibility = "public"
)

// Wager represents a challenge between two users with an escrowed gold stake.
// The stake is debited from the proposer at creation and from the opponent at
// acceptance; it exists in exactly one place at any time: escrowed in the
// wager, refunded, or paid to the winner.
type Wager struct {
	ID            int64           `db:"id"`
	ProposerAlias string          `db:"proposer_alias"`
	OpponentAlias *string         `db:"opponent_alias"` // nil until a public wager is accepted
	Amount        int64           `db:"amount"`
	Condition     string          `db:"condition"`
	Visibility    WagerVisibility `db:"visibility"`
	State         WagerState      `db:"state"`
	WinnerAlias   *string         `db:"winner_alias"` // set only when State == WagerStateResolved
	Version       int32           `db:"version"`      // optimistic-concurrency guard
	CreatedAt     time.Time       `db:"created_at"`
	AcceptedAt    *time.Time      `db:"accepted_at"`
	ResolvedAt    *time.Time      `db:"resolved_at"`
}

// IsParticipant checks if a user is involved in the wager
func (w *Wager) IsParticipant(alias string) bool {
	if w.ProposerAlias == alias {
		return true
	}
	return w.OpponentAlias != nil && *w.OpponentAlias == alias
}

// Opponent returns the other participant's alias for a given participant.
// Returns "" if the given alias is not a participant or no opponent is set.
func (w *Wager) Opponent(alias string) string {
	if w.OpponentAlias == nil {
		return ""
	}
	if w.ProposerAlias == alias {
		return *w.OpponentAlias
	}
	if *w.OpponentAlias == alias {
		return w.ProposerAlias
	}
	return ""
}

// IsTerminal reports whether the wager has reached a final state.
// Terminal wagers are immutable: no vote, payout or transition may follow.
func (w *Wager) IsTerminal() bool {
	switch w.State {
	case WagerStateResolved, WagerStateDraw, WagerStateCancelled:
		return true
	}
	return false
}

// CanBeAccepted checks if the wager can be accepted by the given user
func (w *Wager) CanBeAccepted(alias string) bool {
	if w.State != WagerStatePending || alias == w.ProposerAlias {
		return false
	}
	if w.OpponentAlias != nil {
		return *w.OpponentAlias == alias
	}
	// Open wagers without a named opponent are up for grabs only when public
	return w.Visibility == WagerVisibilityPublic
}

// CanBeCancelled checks if the wager can be cancelled by the given user
func (w *Wager) CanBeCancelled(alias string) bool {
	return w.State == WagerStatePending && w.ProposerAlias == alias
}

// Pot returns the total gold paid to the winner at resolution
func (w *Wager) Pot() int64 {
	return w.Amount * 2
}
