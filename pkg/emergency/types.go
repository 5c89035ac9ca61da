package emergency

import (
	"strings"
	"time"

	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/validator"
)

var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

var urgencies = []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow}

// Rank orders urgencies: critical 4 down to low 1. Unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

type Status string

const (
	StatusActive   Status = "active"
	StatusHidden   Status = "hidden"
	StatusResolved Status = "resolved"
)

// CanTransition reports whether s may move to next. Only an active
// emergency changes status, and never back to active.
func (s Status) CanTransition(next Status) bool {
	return s == StatusActive && (next == StatusHidden || next == StatusResolved)
}

// Phase is a step of the creation flow, used in logs.
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhasePersisted Phase = "persisted"
	PhaseMatched   Phase = "matched"
	PhaseBroadcast Phase = "broadcast"
	PhaseNotified  Phase = "notified"
)

type Emergency struct {
	ID                string    `json:"id"`
	RequesterID       string    `json:"requesterId"`
	BloodGroup        string    `json:"bloodGroup"`
	Urgency           Urgency   `json:"urgency"`
	HospitalName      string    `json:"hospitalName"`
	BedNumber         string    `json:"bedNumber"`
	Ward              string    `json:"ward,omitempty"`
	PatientName       string    `json:"patientName,omitempty"`
	ContactPhone      string    `json:"contactPhone,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Location          geo.Point `json:"location"`
	CountryCode       string    `json:"countryCode"`
	Status            Status    `json:"status"`
	MatchedDonors     int       `json:"matchedDonors"`
	MatchedFacilities int       `json:"matchedFacilities"`
	ConfirmedDonors   int       `json:"confirmedDonors"`
	Revision          int64     `json:"revision"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type ResponseStatus string

const (
	ResponseConfirmed ResponseStatus = "confirmed"
	ResponseRejected  ResponseStatus = "rejected"
	ResponseCancelled ResponseStatus = "cancelled"
)

// NextResponseStatus returns the status of an answer. A donor saying no
// after an earlier answer cancels; a first no is a rejection.
func NextResponseStatus(answeredBefore, available bool) ResponseStatus {
	switch {
	case available:
		return ResponseConfirmed
	case answeredBefore:
		return ResponseCancelled
	default:
		return ResponseRejected
	}
}

type Response struct {
	ID          string         `json:"id"`
	EmergencyID string         `json:"emergencyId"`
	DonorID     string         `json:"donorId"`
	Available   bool           `json:"available"`
	ETAMinutes  *int           `json:"etaMinutes,omitempty"`
	Status      ResponseStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Snapshot is the aggregate state sent to a connection joining the
// emergency room.
type Snapshot struct {
	EmergencyID       string    `json:"emergencyId"`
	Status            Status    `json:"status"`
	BloodGroup        string    `json:"bloodGroup"`
	Urgency           Urgency   `json:"urgency"`
	HospitalName      string    `json:"hospitalName"`
	MatchedDonors     int       `json:"matchedDonors"`
	MatchedFacilities int       `json:"matchedFacilities"`
	ConfirmedDonors   int       `json:"confirmedDonors"`
	Revision          int64     `json:"revision"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (e *Emergency) Snapshot() Snapshot {
	return Snapshot{
		EmergencyID:       e.ID,
		Status:            e.Status,
		BloodGroup:        e.BloodGroup,
		Urgency:           e.Urgency,
		HospitalName:      e.HospitalName,
		MatchedDonors:     e.MatchedDonors,
		MatchedFacilities: e.MatchedFacilities,
		ConfirmedDonors:   e.ConfirmedDonors,
		Revision:          e.Revision,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// CreateInput is the validated payload accepted by CreateEmergency.
type CreateInput struct {
	RequesterID  string  `json:"requesterId"`
	BloodGroup   string  `json:"bloodGroup"`
	Urgency      Urgency `json:"urgency"`
	HospitalName string  `json:"hospitalName"`
	BedNumber    string  `json:"bedNumber"`
	Ward         string  `json:"ward,omitempty"`
	PatientName  string  `json:"patientName,omitempty"`
	ContactPhone string  `json:"contactPhone,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	CountryCode  string  `json:"countryCode"`
}

// Normalize trims text fields and canonicalizes codes.
func (in CreateInput) Normalize() CreateInput {
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.BloodGroup = strings.ToUpper(strings.TrimSpace(in.BloodGroup))
	in.Urgency = Urgency(strings.ToLower(strings.TrimSpace(string(in.Urgency))))
	in.HospitalName = strings.TrimSpace(in.HospitalName)
	in.BedNumber = strings.TrimSpace(in.BedNumber)
	in.Ward = strings.TrimSpace(in.Ward)
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.CountryCode = strings.ToUpper(strings.TrimSpace(in.CountryCode))
	return in
}

// Validate checks the input strictly; optional fields are only length
// checked. (0, 0) is rejected as a missing location.
func (in CreateInput) Validate() error {
	loc := geo.Point{Lat: in.Latitude, Lon: in.Longitude}
	return validator.Apply(
		validator.Required("requesterId", in.RequesterID),
		validator.OneOf("bloodGroup", in.BloodGroup, BloodGroups),
		validator.OneOf("urgency", in.Urgency, urgencies),
		validator.Required("hospitalName", in.HospitalName),
		validator.MaxLen("hospitalName", in.HospitalName, 200),
		validator.Required("bedNumber", in.BedNumber),
		validator.MaxLen("bedNumber", in.BedNumber, 50),
		validator.MaxLen("ward", in.Ward, 100),
		validator.MaxLen("patientName", in.PatientName, 200),
		validator.MaxLen("contactPhone", in.ContactPhone, 20),
		validator.MaxLen("notes", in.Notes, 1000),
		validator.Latitude("latitude", in.Latitude),
		validator.Longitude("longitude", in.Longitude),
		validator.Rule{
			Check: func() bool { return !loc.IsZero() },
			Error: validator.ValidationError{Field: "location", Code: "required", Message: "location is required"},
		},
		validator.CountryCode("countryCode", in.CountryCode),
	)
}
