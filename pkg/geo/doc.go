// Package geo provides the coordinate type shared by the matching and
// presence packages together with great-circle distance helpers.
//
// Distances are computed with the haversine formula on a spherical earth
// (mean radius 6371.0088 km). The result differs from Redis GEODIST and
// PostGIS geography distances by well under one percent, which is below
// the precision donors and requesters care about.
//
// Basic usage:
//
//	a := geo.Point{Lat: 12.97, Lon: 77.59}
//	b := geo.Point{Lat: 12.98, Lon: 77.60}
//	km := geo.DistanceKm(a, b) // ≈ 1.55
package geo
