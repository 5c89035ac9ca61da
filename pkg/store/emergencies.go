package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/pg"
)

// Emergencies stores emergencies in blood_requests and donor answers in
// blood_request_responses. Counter updates are single statements, so
// concurrent responses never lose an update.
type Emergencies struct {
	db DBTX
}

var _ emergency.Repository = (*Emergencies)(nil)

func NewEmergencies(db DBTX) *Emergencies {
	return &Emergencies{db: db}
}

const emergencyColumns = `id::text, requester_id::text, blood_group, urgency, hospital_name, bed_number,
	COALESCE(ward, ''), COALESCE(patient_name, ''), COALESCE(contact_phone, ''), COALESCE(notes, ''),
	latitude, longitude, country_code, status,
	matched_donors_count, matched_facilities_count, confirmed_donors_count,
	revision, created_at, updated_at`

func scanEmergency(row pgx.Row) (*emergency.Emergency, error) {
	var (
		e               emergency.Emergency
		urgency, status string
	)
	err := row.Scan(
		&e.ID, &e.RequesterID, &e.BloodGroup, &urgency, &e.HospitalName, &e.BedNumber,
		&e.Ward, &e.PatientName, &e.ContactPhone, &e.Notes,
		&e.Location.Lat, &e.Location.Lon, &e.CountryCode, &status,
		&e.MatchedDonors, &e.MatchedFacilities, &e.ConfirmedDonors,
		&e.Revision, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, emergency.ErrNotFound
		}
		return nil, err
	}
	e.Urgency = emergency.Urgency(urgency)
	e.Status = emergency.Status(status)
	return &e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Emergencies) Insert(ctx context.Context, e *emergency.Emergency) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO blood_requests (
			id, requester_id, blood_group, urgency, hospital_name, bed_number,
			ward, patient_name, contact_phone, notes,
			latitude, longitude, country_code, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING revision, created_at, updated_at`,
		e.ID, e.RequesterID, e.BloodGroup, string(e.Urgency), e.HospitalName, e.BedNumber,
		nullable(e.Ward), nullable(e.PatientName), nullable(e.ContactPhone), nullable(e.Notes),
		e.Location.Lat, e.Location.Lon, e.CountryCode, string(e.Status), e.CreatedAt,
	).Scan(&e.Revision, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert emergency: %w", err)
	}
	return nil
}

func (r *Emergencies) Get(ctx context.Context, id string) (*emergency.Emergency, error) {
	if !validID(id) {
		return nil, emergency.ErrNotFound
	}
	return scanEmergency(r.db.QueryRow(ctx,
		`SELECT `+emergencyColumns+` FROM blood_requests WHERE id = $1`, id))
}

func (r *Emergencies) SetMatchCounts(ctx context.Context, id string, donors, facilities int) (*emergency.Emergency, error) {
	if !validID(id) {
		return nil, emergency.ErrNotFound
	}
	return scanEmergency(r.db.QueryRow(ctx, `
		UPDATE blood_requests SET
			matched_donors_count = GREATEST(matched_donors_count, $2),
			matched_facilities_count = GREATEST(matched_facilities_count, $3),
			revision = revision + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING `+emergencyColumns, id, donors, facilities))
}

func (r *Emergencies) UpdateStatus(ctx context.Context, id string, next emergency.Status) (*emergency.Emergency, error) {
	if !emergency.StatusActive.CanTransition(next) {
		return nil, emergency.ErrInvalidTransition
	}
	if !validID(id) {
		return nil, emergency.ErrNotFound
	}
	e, err := scanEmergency(r.db.QueryRow(ctx, `
		UPDATE blood_requests SET
			status = $2,
			revision = revision + 1,
			updated_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING `+emergencyColumns, id, string(next)))
	if !errors.Is(err, emergency.ErrNotFound) {
		return e, err
	}

	// No row changed: either the emergency is missing or it already left
	// the active state.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blood_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if exists {
		return nil, emergency.ErrInvalidTransition
	}
	return nil, emergency.ErrNotFound
}

func (r *Emergencies) GetResponse(ctx context.Context, emergencyID, donorID string) (*emergency.Response, error) {
	if !validID(emergencyID) || !validID(donorID) {
		return nil, emergency.ErrResponseNotFound
	}
	var (
		resp   emergency.Response
		status string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id::text, request_id::text, donor_id::text, available, eta_minutes, status, created_at, updated_at
		FROM blood_request_responses
		WHERE request_id = $1 AND donor_id = $2`, emergencyID, donorID,
	).Scan(&resp.ID, &resp.EmergencyID, &resp.DonorID, &resp.Available, &resp.ETAMinutes, &status, &resp.CreatedAt, &resp.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, emergency.ErrResponseNotFound
		}
		return nil, err
	}
	resp.Status = emergency.ResponseStatus(status)
	return &resp, nil
}

// UpsertResponse takes the first-answer status on insert and the
// repeat-answer status on conflict, so concurrent answers from one donor
// cannot both be treated as first.
func (r *Emergencies) UpsertResponse(ctx context.Context, resp *emergency.Response) error {
	if !validID(resp.EmergencyID) || !validID(resp.DonorID) {
		return emergency.ErrNotFound
	}
	var status string
	err := r.db.QueryRow(ctx, `
		INSERT INTO blood_request_responses (request_id, donor_id, available, eta_minutes, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id, donor_id) DO UPDATE SET
			available = EXCLUDED.available,
			eta_minutes = EXCLUDED.eta_minutes,
			status = $6,
			updated_at = now()
		RETURNING id::text, status, created_at, updated_at`,
		resp.EmergencyID, resp.DonorID, resp.Available, resp.ETAMinutes,
		string(emergency.NextResponseStatus(false, resp.Available)),
		string(emergency.NextResponseStatus(true, resp.Available)),
	).Scan(&resp.ID, &status, &resp.CreatedAt, &resp.UpdatedAt)
	resp.Status = emergency.ResponseStatus(status)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return emergency.ErrNotFound
		}
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

func (r *Emergencies) RecountConfirmed(ctx context.Context, id string) (*emergency.Emergency, error) {
	if !validID(id) {
		return nil, emergency.ErrNotFound
	}
	return scanEmergency(r.db.QueryRow(ctx, `
		UPDATE blood_requests SET
			confirmed_donors_count = (
				SELECT count(*) FROM blood_request_responses
				WHERE request_id = $1 AND status = 'confirmed'
			),
			revision = revision + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING `+emergencyColumns, id))
}
