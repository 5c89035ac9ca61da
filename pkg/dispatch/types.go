package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// JobType is the delivery channel of a job.
type JobType string

const (
	JobTypePush JobType = "push"
	JobTypeSMS  JobType = "sms"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Message is the content of a notification about one emergency.
type Message struct {
	EmergencyID  string `json:"emergency_id"`
	Title        string `json:"title,omitempty"`
	Body         string `json:"body"`
	BloodGroup   string `json:"blood_group,omitempty"`
	Urgency      string `json:"urgency,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
	BedNumber    string `json:"bed_number,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	HighPriority bool   `json:"high_priority,omitempty"`
}

// Job is one delivery to one recipient: a device token for push, a phone
// number for SMS.
type Job struct {
	ID          uuid.UUID `json:"id"`
	Type        JobType   `json:"type"`
	Recipient   string    `json:"recipient"`
	OwnerID     string    `json:"owner_id,omitempty"`
	// RequestID correlates delivery logs with the call that enqueued the job.
	RequestID   string    `json:"request_id,omitempty"`
	Payload     Message   `json:"payload"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Status      JobStatus `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats counts jobs per state. Delayed jobs are pending with a schedule in
// the future.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
