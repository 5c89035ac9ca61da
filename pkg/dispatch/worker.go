package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/requestid"
)

// Worker delivers jobs from storage with bounded concurrency.
type Worker struct {
	store     Storage
	push      PushSender
	sms       *SMSRouter
	tokens    TokenRegistry
	limiter   Limiter
	backoff   Backoff
	observers []Observer
	cfg       Config
	log       *slog.Logger
	workerID  uuid.UUID

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	stopMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

type WorkerOption func(*Worker)

// WithPushSender sets the push gateway. Without one, push jobs complete
// as skipped.
func WithPushSender(s PushSender) WorkerOption {
	return func(w *Worker) { w.push = s }
}

// WithSMSRouter sets SMS routing. Without one, SMS jobs complete as skipped.
func WithSMSRouter(r *SMSRouter) WorkerOption {
	return func(w *Worker) { w.sms = r }
}

func WithTokenRegistry(r TokenRegistry) WorkerOption {
	return func(w *Worker) { w.tokens = r }
}

// WithLimiter replaces the default in-process rate limiter.
func WithLimiter(l Limiter) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.limiter = l
		}
	}
}

func WithObserver(o Observer) WorkerOption {
	return func(w *Worker) { w.observers = append(w.observers, o) }
}

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

func NewWorker(store Storage, cfg Config, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, ErrStorageNil
	}
	cfg = withDefaults(cfg)
	w := &Worker{
		store:    store,
		limiter:  NewLocalLimiter(cfg.RateLimit, cfg.RatePeriod),
		backoff:  Backoff{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax, Multiplier: 2},
		cfg:      cfg,
		log:      slog.Default(),
		workerID: uuid.New(),
		sem:      make(chan struct{}, cfg.Concurrency),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = d.BackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = d.BackoffMax
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = d.AttemptTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = d.PollInterval
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = d.LeaseTimeout
	}
	return cfg
}

// Start begins processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWorkerStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.stopping.Store(false)

	go w.run()

	w.log.LogAttrs(ctx, slog.LevelInfo, "dispatch worker started",
		logger.Component("dispatch"),
		slog.String("worker_id", w.workerID.String()),
		slog.Int("concurrency", cap(w.sem)),
	)
	return nil
}

// Stop cancels polling and waits for in-flight deliveries.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.log.LogAttrs(context.Background(), slog.LevelInfo, "dispatch worker stopped",
		logger.Component("dispatch"),
		slog.String("worker_id", w.workerID.String()),
	)
	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain every due job before sleeping; each claim needs a free slot.
		for w.claimNext() {
		}
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// claimNext claims one job into a free slot. It reports false when no slot
// is free, nothing is due, or the worker is stopping.
func (w *Worker) claimNext() bool {
	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return false
	}

	w.stopMu.Lock()
	if w.stopping.Load() {
		w.stopMu.Unlock()
		<-w.sem
		return false
	}
	w.wg.Add(1)
	w.stopMu.Unlock()

	job, err := w.store.Claim(w.ctx, time.Now(), w.cfg.LeaseTimeout)
	if err != nil {
		<-w.sem
		w.wg.Done()
		if !errors.Is(err, ErrNoJobToClaim) && w.ctx.Err() == nil {
			w.log.LogAttrs(w.ctx, slog.LevelError, "failed to claim job",
				logger.Component("dispatch"),
				logger.Error(err),
			)
		}
		return false
	}

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(job)
	}()
	return true
}

func (w *Worker) process(job *Job) {
	// Deliveries already claimed finish even when the worker is stopping.
	ctx := requestid.WithContext(context.WithoutCancel(w.ctx), job.RequestID)
	if err := w.limiter.Wait(w.ctx); err != nil {
		if w.ctx.Err() != nil {
			// Stopped while waiting: the job was never attempted.
			w.release(ctx, job)
			return
		}
		o := Outcome{Job: *job, Err: err}
		w.retryOrFail(&o, job)
		w.settle(ctx, job, o)
		return
	}

	start := time.Now()
	err := w.attempt(ctx, job)
	o := Outcome{Job: *job, Err: err, Duration: time.Since(start)}

	switch {
	case err == nil:
		o.Kind = OutcomeDelivered
	case errors.Is(err, ErrNoSender):
		o.Kind = OutcomeSkipped
	case errors.Is(err, ErrInvalidToken):
		o.Kind = OutcomeInvalidToken
	case errors.Is(err, ErrPermanent):
		o.Kind = OutcomeFailed
	default:
		w.retryOrFail(&o, job)
	}
	w.settle(ctx, job, o)
}

// retryOrFail schedules a backoff retry until the attempts are spent.
func (w *Worker) retryOrFail(o *Outcome, job *Job) {
	if job.Attempts >= job.MaxAttempts {
		o.Kind = OutcomeFailed
		return
	}
	o.Kind = OutcomeRetrying
	o.RetryAt = time.Now().Add(w.backoff.NextInterval(job.Attempts))
}

func (w *Worker) release(ctx context.Context, job *Job) {
	if err := w.store.Release(ctx, job.ID); err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "failed to release job",
			logger.Component("dispatch"),
			logger.JobID(job.ID.String()),
			logger.Error(err),
		)
		return
	}
	w.log.LogAttrs(ctx, slog.LevelDebug, "job released",
		logger.Component("dispatch"),
		logger.JobID(job.ID.String()),
	)
}

// attempt runs one delivery under the per-attempt timeout. A panicking
// sender counts as a failed attempt.
func (w *Worker) attempt(ctx context.Context, job *Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sender: %v", r)
		}
	}()

	switch job.Type {
	case JobTypePush:
		if w.push == nil {
			return ErrNoSender
		}
		return w.push.SendPush(ctx, job.Recipient, job.Payload)
	case JobTypeSMS:
		if w.sms == nil {
			return ErrNoSender
		}
		return w.sms.Send(ctx, job.Payload.CountryCode, job.Recipient, job.Payload.Body)
	}
	return fmt.Errorf("%w: unknown job type %q", ErrPermanent, job.Type)
}

func (w *Worker) settle(ctx context.Context, job *Job, o Outcome) {
	var err error
	level := slog.LevelDebug
	switch o.Kind {
	case OutcomeDelivered, OutcomeSkipped:
		err = w.store.Complete(ctx, job.ID)
	case OutcomeRetrying:
		level = slog.LevelWarn
		err = w.store.Retry(ctx, job.ID, errString(o.Err), o.RetryAt)
	case OutcomeInvalidToken:
		level = slog.LevelInfo
		if w.tokens != nil {
			if derr := w.tokens.Deactivate(ctx, job.Recipient); derr != nil {
				w.log.LogAttrs(ctx, slog.LevelWarn, "token deactivation failed",
					logger.Component("dispatch"),
					logger.JobID(job.ID.String()),
					logger.Error(derr),
				)
			}
		}
		err = w.store.Fail(ctx, job.ID, errString(o.Err))
	case OutcomeFailed:
		level = slog.LevelError
		err = w.store.Fail(ctx, job.ID, errString(o.Err))
	}
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "failed to record job outcome",
			logger.Component("dispatch"),
			logger.JobID(job.ID.String()),
			logger.Error(err),
		)
	}

	w.log.LogAttrs(ctx, level, "delivery attempt finished",
		logger.Component("dispatch"),
		logger.JobID(job.ID.String()),
		logger.EmergencyID(job.Payload.EmergencyID),
		slog.String("type", string(job.Type)),
		slog.String("outcome", string(o.Kind)),
		logger.Attempt(job.Attempts),
		logger.Duration(o.Duration),
		logger.Error(o.Err),
	)

	for _, obs := range w.observers {
		obs.OnOutcome(ctx, o)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
