package api

import (
	"errors"
	"net/http"
	"strconv"

	"retos/models"
	"retos/service"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	userService  service.UserService
	wagerService service.WagerService
}

type proposeRequest struct {
	Opponent   *string `json:"opponent"`
	Amount     int64   `json:"stakeAmount" binding:"required,min=1"`
	Condition  string  `json:"condition" binding:"required"`
	Visibility string  `json:"visibility"`
}

type voteRequest struct {
	ChosenSide string `json:"chosenSide" binding:"required"`
}

type wagerSummary struct {
	WagerID     int64    `json:"wagerId"`
	Proposer    string   `json:"proposer"`
	Opponent    *string  `json:"opponent,omitempty"`
	StakeAmount int64    `json:"stakeAmount"`
	Condition   string   `json:"condition"`
	Visibility  string   `json:"visibility"`
	Status      string   `json:"status"`
	Winner      *string  `json:"winner,omitempty"`
	Votes       []voteDT `json:"votes"`
}

type voteDT struct {
	Voter      string `json:"voter"`
	ChosenSide string `json:"chosenSide"`
}

func summarize(w *models.Wager, votes []*models.WagerVote) wagerSummary {
	s := wagerSummary{
		WagerID:     w.ID,
		Proposer:    w.ProposerAlias,
		Opponent:    w.OpponentAlias,
		StakeAmount: w.Amount,
		Condition:   w.Condition,
		Visibility:  string(w.Visibility),
		Status:      string(w.State),
		Winner:      w.WinnerAlias,
		Votes:       make([]voteDT, 0, len(votes)),
	}
	for _, v := range votes {
		s.Votes = append(s.Votes, voteDT{Voter: v.VoterAlias, ChosenSide: v.ChosenAlias})
	}
	return s
}

func callerAlias(c *gin.Context) string {
	return c.GetString(aliasContextKey)
}

func wagerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "invalid wager id",
		})
		return 0, false
	}
	return id, true
}

// respondError maps the settlement error taxonomy onto HTTP statuses; the
// engine itself never chooses user-facing wording beyond the error message.
func respondError(c *gin.Context, err error) {
	kind := "internal"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrNotFound):
		kind, status = "not_found", http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientFunds):
		kind, status = "insufficient_funds", http.StatusPaymentRequired
	case errors.Is(err, service.ErrSelfVote):
		kind, status = "self_vote", http.StatusForbidden
	case errors.Is(err, service.ErrDuplicateVote):
		kind, status = "duplicate_vote", http.StatusConflict
	case errors.Is(err, service.ErrInvalidTransition):
		kind, status = "invalid_transition", http.StatusConflict
	case errors.Is(err, service.ErrConflict):
		// Retries exhausted; the caller may simply try again
		kind, status = "conflict", http.StatusConflict
	case errors.Is(err, service.ErrInvalidChoice):
		kind, status = "invalid_choice", http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

func (h *handlers) getMe(c *gin.Context) {
	user, err := h.userService.GetOrCreateUser(c.Request.Context(), callerAlias(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alias":         user.Alias,
		"goldBalance":   user.GoldBalance,
		"silverBalance": user.SilverBalance,
	})
}

func (h *handlers) getHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	history, err := h.userService.GetBalanceHistory(c.Request.Context(), callerAlias(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *handlers) support(c *gin.Context) {
	token, err := h.userService.Support(c.Request.Context(), callerAlias(c), c.Param("alias"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *handlers) proposeWager(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	visibility := models.WagerVisibility(req.Visibility)
	if req.Visibility == "" {
		visibility = models.WagerVisibilityPrivate
	}

	wager, err := h.wagerService.Propose(c.Request.Context(), callerAlias(c), req.Opponent, req.Amount, req.Condition, visibility)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summarize(wager, nil))
}

func (h *handlers) listWagers(c *gin.Context) {
	proposed, received, open, err := h.wagerService.ListForUser(c.Request.Context(), callerAlias(c))
	if err != nil {
		respondError(c, err)
		return
	}

	toSummaries := func(wagers []*models.Wager) []wagerSummary {
		out := make([]wagerSummary, 0, len(wagers))
		for _, w := range wagers {
			out = append(out, summarize(w, nil))
		}
		return out
	}

	c.JSON(http.StatusOK, gin.H{
		"proposed": toSummaries(proposed),
		"received": toSummaries(received),
		"open":     toSummaries(open),
	})
}

func (h *handlers) getWager(c *gin.Context) {
	id, ok := wagerID(c)
	if !ok {
		return
	}

	wager, err := h.wagerService.GetWagerByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if wager == nil {
		respondError(c, service.ErrNotFound)
		return
	}

	votes, err := h.wagerService.GetWagerVotes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summarize(wager, votes))
}

func (h *handlers) acceptWager(c *gin.Context) {
	id, ok := wagerID(c)
	if !ok {
		return
	}

	wager, err := h.wagerService.Accept(c.Request.Context(), id, callerAlias(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(wager, nil))
}

func (h *handlers) cancelWager(c *gin.Context) {
	id, ok := wagerID(c)
	if !ok {
		return
	}

	wager, err := h.wagerService.Cancel(c.Request.Context(), id, callerAlias(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(wager, nil))
}

func (h *handlers) castVote(c *gin.Context) {
	id, ok := wagerID(c)
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	wager, counts, err := h.wagerService.CastVote(c.Request.Context(), id, callerAlias(c), req.ChosenSide)
	if err != nil {
		respondError(c, err)
		return
	}

	summary := summarize(wager, nil)
	c.JSON(http.StatusOK, gin.H{
		"wager": summary,
		"tally": gin.H{
			"proposerVotes": counts.ProposerVotes,
			"opponentVotes": counts.OpponentVotes,
			"totalVotes":    counts.TotalVotes,
		},
	})
}

func (h *handlers) claimWager(c *gin.Context) {
	id, ok := wagerID(c)
	if !ok {
		return
	}

	wager, err := h.wagerService.Claim(c.Request.Context(), id, callerAlias(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(wager, nil))
}
