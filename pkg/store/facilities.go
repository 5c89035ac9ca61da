package store

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/pulse/pkg/match"
)

// Facilities queries active blood banks and emergency-capable hospitals.
type Facilities struct {
	db DBTX
}

var _ match.FacilitySource = (*Facilities)(nil)

func NewFacilities(db DBTX) *Facilities {
	return &Facilities{db: db}
}

func (f *Facilities) NearbyFacilities(ctx context.Context, q match.FacilityQuery) ([]match.Facility, error) {
	rows, err := f.db.Query(ctx, `
		SELECT id::text, name, type, emergency, COALESCE(phone, ''), latitude, longitude,
			ST_Distance(
				ST_MakePoint(longitude, latitude)::geography,
				ST_MakePoint($1, $2)::geography
			) / 1000 AS distance_km
		FROM hospitals
		WHERE is_active
			AND latitude IS NOT NULL AND longitude IS NOT NULL
			AND country_code = $3
			AND (type = 'blood_bank' OR emergency)
			AND ST_DWithin(
				ST_MakePoint(longitude, latitude)::geography,
				ST_MakePoint($1, $2)::geography,
				$4::float8 * 1000
			)
		ORDER BY distance_km ASC, emergency DESC
		LIMIT $5`,
		q.Center.Lon, q.Center.Lat, q.CountryCode, q.RadiusKm, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby facilities: %w", err)
	}
	defer rows.Close()

	var out []match.Facility
	for rows.Next() {
		var fc match.Facility
		if err := rows.Scan(&fc.ID, &fc.Name, &fc.Type, &fc.EmergencyCapable, &fc.Phone,
			&fc.Location.Lat, &fc.Location.Lon, &fc.DistanceKm); err != nil {
			return nil, fmt.Errorf("nearby facilities: %w", err)
		}
		out = append(out, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearby facilities: %w", err)
	}
	return out, nil
}
