package emergency

import "context"

// Repository is the durable store of emergencies and donor responses.
// Every method that changes an emergency bumps its Revision and returns
// the stored row.
type Repository interface {
	Insert(ctx context.Context, e *Emergency) error
	Get(ctx context.Context, id string) (*Emergency, error)
	// SetMatchCounts raises the matched counters; a lower value never
	// replaces a higher one.
	SetMatchCounts(ctx context.Context, id string, donors, facilities int) (*Emergency, error)
	// UpdateStatus moves an active emergency to next. It returns
	// ErrInvalidTransition when the stored status does not allow it.
	UpdateStatus(ctx context.Context, id string, next Status) (*Emergency, error)

	GetResponse(ctx context.Context, emergencyID, donorID string) (*Response, error)
	// UpsertResponse stores the answer keyed by emergency and donor. It sets
	// r.Status with NextResponseStatus, judging whether the donor answered
	// before in the same atomic step as the write.
	UpsertResponse(ctx context.Context, r *Response) error
	// RecountConfirmed sets ConfirmedDonors from the confirmed responses in
	// one statement.
	RecountConfirmed(ctx context.Context, id string) (*Emergency, error)
}
