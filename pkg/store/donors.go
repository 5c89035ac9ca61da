package store

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/pulse/pkg/match"
)

// Donors is the durable donor table queried when the presence store is
// unavailable.
type Donors struct {
	db DBTX
}

var _ match.DonorSource = (*Donors)(nil)

func NewDonors(db DBTX) *Donors {
	return &Donors{db: db}
}

// NearbyEligibleDonors returns active, eligible donors within the radius
// whose last donation is not after q.DonatedBefore, nearest first.
func (d *Donors) NearbyEligibleDonors(ctx context.Context, q match.DonorQuery) ([]match.Candidate, error) {
	rows, err := d.db.Query(ctx, `
		SELECT d.user_id::text,
			ST_Distance(
				ST_MakePoint(u.longitude, u.latitude)::geography,
				ST_MakePoint($1, $2)::geography
			) / 1000 AS distance_km
		FROM donors d
		JOIN users u ON u.id = d.user_id
		WHERE d.is_active AND d.is_eligible
			AND u.is_active AND NOT u.is_banned
			AND u.latitude IS NOT NULL AND u.longitude IS NOT NULL
			AND u.country_code = $3
			AND ($5 = '' OR d.blood_group = $5)
			AND (d.last_donation_date IS NULL OR d.last_donation_date <= $6::date)
			AND ST_DWithin(
				ST_MakePoint(u.longitude, u.latitude)::geography,
				ST_MakePoint($1, $2)::geography,
				$4::float8 * 1000
			)
		ORDER BY distance_km ASC
		LIMIT $7`,
		q.Center.Lon, q.Center.Lat, q.CountryCode, q.RadiusKm, q.BloodGroup, q.DonatedBefore, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby donors: %w", err)
	}
	defer rows.Close()

	var out []match.Candidate
	for rows.Next() {
		c := match.Candidate{Source: match.SourceDurable}
		if err := rows.Scan(&c.DonorID, &c.DistanceKm); err != nil {
			return nil, fmt.Errorf("nearby donors: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearby donors: %w", err)
	}
	return out, nil
}
