package dispatch

import (
	"context"
	"time"
)

// OutcomeKind is the result of one delivery attempt.
type OutcomeKind string

const (
	OutcomeDelivered    OutcomeKind = "delivered"
	OutcomeRetrying     OutcomeKind = "retrying"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeInvalidToken OutcomeKind = "invalid_token"
	OutcomeSkipped      OutcomeKind = "skipped"
)

// Outcome describes one finished attempt.
type Outcome struct {
	Job      Job
	Kind     OutcomeKind
	Err      error
	Duration time.Duration
	// RetryAt is set for OutcomeRetrying.
	RetryAt time.Time
}

// Observer receives delivery outcomes. Observers run on the worker
// goroutine and must not block.
type Observer interface {
	OnOutcome(ctx context.Context, o Outcome)
}

type ObserverFunc func(ctx context.Context, o Outcome)

func (f ObserverFunc) OnOutcome(ctx context.Context, o Outcome) { f(ctx, o) }
