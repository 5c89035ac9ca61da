package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean earth radius used for distance calculations.
const EarthRadiusKm = 6371.0088

// ErrInvalidPoint is returned when a coordinate is outside the valid range.
var ErrInvalidPoint = errors.New("geo: coordinates out of range")

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate reports whether the point lies within latitude [-90, 90] and
// longitude [-180, 180]. NaN and infinite values are rejected.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return ErrInvalidPoint
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidPoint
	}
	return nil
}

// IsZero reports whether the point is the zero value.
// (0,0) sits in the Gulf of Guinea, so it is treated as "not provided".
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Within reports whether b lies within radiusKm of a.
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

// RoundKm rounds a distance to two decimals, the precision exposed to clients.
func RoundKm(km float64) float64 {
	return math.Round(km*100) / 100
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
