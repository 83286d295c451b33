package events

import (
	"context"
	"sync"

	"retos/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeUserCreated    EventType = "user_created"
	EventTypeWagerProposed  EventType = "wager_proposed"
	EventTypeWagerAccepted  EventType = "wager_accepted"
	EventTypeWagerResolved  EventType = "wager_resolved"
	EventTypeWagerCancelled EventType = "wager_cancelled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	Alias           string
	Token           models.TokenKind
	OldBalance      int64
	NewBalance      int64
	TransactionType models.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new user creation
type UserCreatedEvent struct {
	Alias         string
	InitialGold   int64
	InitialSilver int64
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// WagerProposedEvent represents a newly created wager proposal.
// This is the hook a notification dispatcher subscribes to in order to
// alert the challenged user.
type WagerProposedEvent struct {
	WagerID       int64
	ProposerAlias string
	OpponentAlias string // empty for open public wagers
	Amount        int64
	Condition     string
}

func (e WagerProposedEvent) Type() EventType {
	return EventTypeWagerProposed
}

// WagerAcceptedEvent represents a wager entering the voting phase
type WagerAcceptedEvent struct {
	WagerID       int64
	ProposerAlias string
	OpponentAlias string
	Amount        int64
}

func (e WagerAcceptedEvent) Type() EventType {
	return EventTypeWagerAccepted
}

// WagerResolvedEvent represents a wager that reached a verdict
type WagerResolvedEvent struct {
	WagerID     int64
	Outcome     models.Outcome
	WinnerAlias string // empty on a draw
	Pot         int64
}

func (e WagerResolvedEvent) Type() EventType {
	return EventTypeWagerResolved
}

// WagerCancelledEvent represents a pending wager cancelled by its proposer
type WagerCancelledEvent struct {
	WagerID       int64
	ProposerAlias string
	Refund        int64
}

func (e WagerCancelledEvent) Type() EventType {
	return EventTypeWagerCancelled
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// TransactionalBus stashes events published during a unit of work and
// flushes them to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus creates a transactional bus wrapping the real one
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event for emission after commit
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	// Events outlive the transaction, so emit with a background context
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops all pending events; called after rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
