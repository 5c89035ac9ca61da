package hub

import "strings"

const (
	regionPrefix    = "region:"
	emergencyPrefix = "emergency:"
	userPrefix      = "user:"
)

// RegionRoom returns the room of all connections of a country.
func RegionRoom(countryCode string) string {
	return regionPrefix + strings.ToLower(countryCode)
}

func EmergencyRoom(emergencyID string) string { return emergencyPrefix + emergencyID }

func UserRoom(userID string) string { return userPrefix + userID }

// EmergencyIDFromRoom returns the id of an emergency room, or false for any
// other room.
func EmergencyIDFromRoom(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, emergencyPrefix)
	return id, ok && id != ""
}
