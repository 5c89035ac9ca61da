package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of *pgxpool.Pool the healthcheck needs.
type Querier interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Healthcheck reports the database unhealthy when it is unreachable or the
// PostGIS extension used for radius search is not installed.
func Healthcheck(db Querier) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		var version string
		if err := db.QueryRow(ctx, `SELECT postgis_lib_version()`).Scan(&version); err != nil {
			return errors.Join(ErrHealthcheckFailed, ErrPostGISMissing, err)
		}
		return nil
	}
}
