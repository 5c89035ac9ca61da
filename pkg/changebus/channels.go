package changebus

import (
	"context"
	"slices"
	"time"
)

const (
	ChannelEmergencyCreated      = "emergency_created"
	ChannelEmergencyResponse     = "emergency_response"
	ChannelEmergencyStatusUpdate = "emergency_status_update"
	ChannelHospitalStatusUpdate  = "hospital_status_update"
	ChannelInventoryUpdate       = "blood_inventory_update"
)

// Channels lists every channel the bus listens on.
func Channels() []string {
	return []string{
		ChannelEmergencyCreated,
		ChannelEmergencyResponse,
		ChannelEmergencyStatusUpdate,
		ChannelHospitalStatusUpdate,
		ChannelInventoryUpdate,
	}
}

func IsKnownChannel(ch string) bool { return slices.Contains(Channels(), ch) }

// Publisher sends a change event to every process listening on channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Notification is one raw message received from a listener.
type Notification struct {
	Channel string
	Payload []byte
}

// Origin is embedded in payloads published by this engine. Rows emitted by
// database triggers leave it empty.
type Origin struct {
	Origin string `json:"origin,omitempty"`
}

func (o Origin) OriginID() string { return o.Origin }

type EmergencyCreated struct {
	Origin
	ID           string    `json:"id"`
	BloodGroup   string    `json:"blood_group"`
	Urgency      string    `json:"urgency"`
	HospitalName string    `json:"hospital_name"`
	Latitude     float64   `json:"hospital_latitude"`
	Longitude    float64   `json:"hospital_longitude"`
	CountryCode  string    `json:"country_code"`
	CreatedAt    time.Time `json:"created_at"`
}

type EmergencyResponse struct {
	Origin
	ID          string    `json:"id"`
	EmergencyID string    `json:"emergency_id"`
	DonorID     string    `json:"donor_id"`
	Available   bool      `json:"available"`
	Status      string    `json:"status"`
	ETAMinutes  *int      `json:"eta_minutes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmergencyStatusUpdate carries the aggregate state of an emergency.
// Revision increases with every change of the row.
type EmergencyStatusUpdate struct {
	Origin
	ID                string    `json:"id"`
	Revision          int64     `json:"revision"`
	OldStatus         string    `json:"old_status,omitempty"`
	NewStatus         string    `json:"new_status"`
	MatchedDonors     int       `json:"matched_donors_count"`
	MatchedFacilities int       `json:"matched_facilities_count"`
	ConfirmedDonors   int       `json:"confirmed_donors_count"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type HospitalStatusUpdate struct {
	Origin
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Emergency   bool    `json:"emergency"`
	IsActive    bool    `json:"is_active"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code"`
}

type InventoryUpdate struct {
	Origin
	HospitalID  string    `json:"hospital_id"`
	BloodGroup  string    `json:"blood_group"`
	Status      string    `json:"status"`
	Units       int       `json:"units"`
	LastUpdated time.Time `json:"last_updated"`
}
