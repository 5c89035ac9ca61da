// Package pg bootstraps the PostgreSQL connection pool (pgx), exposes a
// readiness check and runs goose migrations from an fs.FS.
//
// Error helpers classify driver errors so repositories can map them to their
// own sentinel errors:
//
//	if pg.IsNotFoundError(err) {
//		return nil, ErrNotFound
//	}
package pg
