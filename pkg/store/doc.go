// Package store implements the durable repositories of the engine on
// PostgreSQL with PostGIS, using pgx.
//
// Each repository takes a DBTX, satisfied by *pgxpool.Pool, *pgx.Conn and
// pgx.Tx:
//
//	pool, _ := pg.Connect(ctx, cfg)
//	_ = pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, cfg, log)
//	emergencies := store.NewEmergencies(pool)
//	engine := match.New(presenceStore, store.NewDonors(pool), store.NewFacilities(pool))
//
// The schema installs triggers that publish hospital and blood inventory
// changes with pg_notify, so edits made by other systems reach every
// process through the change bus.
package store
