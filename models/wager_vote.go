package models

import (
	"time"
)

// WagerVote represents a third-party vote on a wager outcome
type WagerVote struct {
	ID          int64     `db:"id"`
	WagerID     int64     `db:"wager_id"`
	VoterAlias  string    `db:"voter_alias"`
	ChosenAlias string    `db:"chosen_alias"`
	CreatedAt   time.Time `db:"created_at"`
}

// VoteCount represents the vote tally for a wager
type VoteCount struct {
	ProposerVotes int
	OpponentVotes int
	TotalVotes    int
}

// Outcome is the kind of verdict a vote tally produces
type Outcome string

const (
	OutcomeUndetermined Outcome = "undetermined"
	OutcomeWinner       Outcome = "winner"
	OutcomeDraw         Outcome = "draw"
)

// Verdict is the result of tallying votes against the quorum rule
type Verdict struct {
	Outcome     Outcome
	WinnerAlias string // set only when Outcome == OutcomeWinner
}

// TallyVotes counts the full vote sequence per side. Votes for anyone other
// than the two participants are impossible by construction but would be
// counted in TotalVotes only.
func TallyVotes(votes []*WagerVote, proposer, opponent string) *VoteCount {
	vc := &VoteCount{TotalVotes: len(votes)}
	for _, v := range votes {
		switch v.ChosenAlias {
		case proposer:
			vc.ProposerVotes++
		case opponent:
			vc.OpponentVotes++
		}
	}
	return vc
}

// ResolveVerdict decides the outcome of a wager from its complete vote
// sequence. No verdict is computed before quorum votes have been cast. At
// quorum, the side with strictly more votes wins; equal counts are a draw.
// The result is permutation-invariant: only the tally matters, not the order
// in which votes arrived.
func ResolveVerdict(votes []*WagerVote, proposer, opponent string, quorum int) Verdict {
	if len(votes) < quorum {
		return Verdict{Outcome: OutcomeUndetermined}
	}

	vc := TallyVotes(votes, proposer, opponent)
	switch {
	case vc.ProposerVotes > vc.OpponentVotes:
		return Verdict{Outcome: OutcomeWinner, WinnerAlias: proposer}
	case vc.OpponentVotes > vc.ProposerVotes:
		return Verdict{Outcome: OutcomeWinner, WinnerAlias: opponent}
	default:
		return Verdict{Outcome: OutcomeDraw}
	}
}
