package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wagersProposed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retos_wagers_proposed_total",
		Help: "Number of wager proposals created",
	})

	votesCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retos_votes_cast_total",
		Help: "Number of wager votes successfully recorded",
	})

	conflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retos_vote_conflict_retries_total",
		Help: "Number of vote attempts retried after an optimistic-concurrency conflict",
	})

	wagersResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retos_wagers_resolved_total",
		Help: "Number of wagers settled, by verdict outcome",
	}, []string{"outcome"})
)
