package hub

// Outbound event names.
const (
	EventEmergencyCreated       = "emergency:created"
	EventEmergencyStatusUpdated = "emergency:status-updated"
	EventEmergencyStatus        = "emergency:status"
	EventEmergencyResponse      = "emergency:response"
	EventEmergencyNearby        = "emergency:nearby"
	EventDonorResponded         = "emergency:donor-responded"
	EventDonorPresenceUpdated   = "donor:presence-updated"
	EventHospitalStatusUpdated  = "hospital:status-updated"
	EventInventoryUpdated       = "blood_inventory:updated"

	EventJoined       = "emergency:joined"
	EventLeft         = "emergency:left"
	EventResponseSent = "emergency:response-sent"
	EventPong         = "pong"
	EventError        = "error"
)

// Inbound event names accepted from clients.
const (
	InboundUpdatePresence = "donor:update-presence"
	InboundJoin           = "emergency:join"
	InboundLeave          = "emergency:leave"
	InboundRespond        = "emergency:respond"
	InboundPing           = "ping"
)

// PresenceUpdate is the payload of donor:presence-updated, whichever side
// emits it.
type PresenceUpdate struct {
	DonorID   string `json:"donorId"`
	Available bool   `json:"isAvailable"`
}
