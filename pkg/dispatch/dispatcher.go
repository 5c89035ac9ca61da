package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/requestid"
)

// TokenRegistry owns device push tokens.
type TokenRegistry interface {
	ActiveTokens(ctx context.Context, userID string) ([]string, error)
	Deactivate(ctx context.Context, token string) error
}

// Contact is how a recipient is reached by SMS.
type Contact struct {
	Phone       string
	CountryCode string
}

// RecipientDirectory resolves SMS contacts. ok is false for unknown users
// or users without a phone number.
type RecipientDirectory interface {
	Contact(ctx context.Context, userID string) (c Contact, ok bool, err error)
}

// Notice describes an emergency to notify donors about.
type Notice struct {
	EmergencyID  string
	BloodGroup   string
	Urgency      string
	HospitalName string
	BedNumber    string
	CountryCode  string
	// Critical enables the delayed SMS fallback.
	Critical bool
}

// Dispatcher builds and enqueues notification jobs.
type Dispatcher struct {
	store      Storage
	tokens     TokenRegistry
	recipients RecipientDirectory
	cfg        Config
	log        *slog.Logger
	now        func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithDispatcherConfig(cfg Config) DispatcherOption {
	return func(d *Dispatcher) {
		if cfg.MaxAttempts > 0 {
			d.cfg.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.SMSDelay > 0 {
			d.cfg.SMSDelay = cfg.SMSDelay
		}
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(store Storage, tokens TokenRegistry, recipients RecipientDirectory, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrStorageNil
	}
	d := &Dispatcher{
		store:      store,
		tokens:     tokens,
		recipients: recipients,
		cfg:        DefaultConfig(),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Enqueue stores jobs in one batch. Zero fields get defaults: a new id,
// pending status, MaxAttempts from config, ScheduledAt now and the request
// id of ctx.
func (d *Dispatcher) Enqueue(ctx context.Context, jobs ...*Job) error {
	if len(jobs) == 0 {
		return ErrNoJobs
	}
	ctx, rid := requestid.Ensure(ctx)
	now := d.now()
	for _, job := range jobs {
		if job == nil || job.Recipient == "" || (job.Type != JobTypePush && job.Type != JobTypeSMS) {
			return ErrInvalidJob
		}
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		if job.MaxAttempts <= 0 {
			job.MaxAttempts = d.cfg.MaxAttempts
		}
		if job.ScheduledAt.IsZero() {
			job.ScheduledAt = now
		}
		if job.RequestID == "" {
			job.RequestID = rid
		}
		job.Status = JobStatusPending
		job.Attempts = 0
		job.CreatedAt = now
		job.UpdatedAt = now
	}
	if err := d.store.Create(ctx, jobs...); err != nil {
		return fmt.Errorf("enqueue %d jobs: %w", len(jobs), err)
	}
	return nil
}

// NotifyDonors enqueues one push job per active token of every donor and,
// for critical notices, one SMS per donor delayed by Config.SMSDelay.
// Lookup failures for one donor are logged and skip that donor only.
func (d *Dispatcher) NotifyDonors(ctx context.Context, n Notice, donorIDs []string) (int, error) {
	ctx, _ = requestid.Ensure(ctx)
	push := PushMessage(n)
	sms := SMSMessage(n)
	now := d.now()

	var jobs []*Job
	for _, donorID := range donorIDs {
		if d.tokens != nil {
			tokens, err := d.tokens.ActiveTokens(ctx, donorID)
			if err != nil {
				d.lookupFailed(ctx, "tokens", donorID, err)
			}
			for _, tok := range tokens {
				jobs = append(jobs, &Job{Type: JobTypePush, Recipient: tok, OwnerID: donorID, Payload: push})
			}
		}

		if !n.Critical || d.recipients == nil {
			continue
		}
		c, ok, err := d.recipients.Contact(ctx, donorID)
		if err != nil {
			d.lookupFailed(ctx, "contact", donorID, err)
			continue
		}
		if !ok || c.Phone == "" {
			continue
		}
		msg := sms
		msg.CountryCode = c.CountryCode
		jobs = append(jobs, &Job{
			Type:        JobTypeSMS,
			Recipient:   c.Phone,
			OwnerID:     donorID,
			Payload:     msg,
			ScheduledAt: now.Add(d.cfg.SMSDelay),
		})
	}

	if len(jobs) == 0 {
		return 0, nil
	}
	if err := d.Enqueue(ctx, jobs...); err != nil {
		return 0, err
	}
	d.log.LogAttrs(ctx, slog.LevelInfo, "notifications enqueued",
		logger.Component("dispatch"),
		logger.EmergencyID(n.EmergencyID),
		slog.Int("jobs", len(jobs)),
		slog.Int("donors", len(donorIDs)),
	)
	return len(jobs), nil
}

func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	return d.store.Stats(ctx, d.now())
}

func (d *Dispatcher) lookupFailed(ctx context.Context, what, donorID string, err error) {
	d.log.LogAttrs(ctx, slog.LevelWarn, "recipient lookup failed",
		logger.Component("dispatch"),
		logger.DonorID(donorID),
		slog.String("lookup", what),
		logger.Error(err),
	)
}

// PushMessage renders the push notification for n.
func PushMessage(n Notice) Message {
	body := fmt.Sprintf("%s blood needed at %s.", n.BloodGroup, n.HospitalName)
	if n.BedNumber != "" {
		body += " Bed: " + n.BedNumber
	}
	return Message{
		EmergencyID:  n.EmergencyID,
		Title:        fmt.Sprintf("Urgent %s blood needed", n.BloodGroup),
		Body:         body,
		BloodGroup:   n.BloodGroup,
		Urgency:      n.Urgency,
		HospitalName: n.HospitalName,
		BedNumber:    n.BedNumber,
		CountryCode:  n.CountryCode,
		HighPriority: n.Critical,
	}
}

// SMSMessage renders the SMS text for n.
func SMSMessage(n Notice) Message {
	return Message{
		EmergencyID:  n.EmergencyID,
		Body:         fmt.Sprintf("URGENT: %s blood needed at %s. Reply YES if available. Pulse App", n.BloodGroup, strings.TrimSpace(n.HospitalName)),
		BloodGroup:   n.BloodGroup,
		Urgency:      n.Urgency,
		HospitalName: n.HospitalName,
		CountryCode:  n.CountryCode,
		HighPriority: true,
	}
}
