// Package httpserver runs an http.Handler until its context is cancelled and
// then drains in-flight requests within a bounded shutdown timeout.
//
// Process signals are not handled here; the caller derives ctx from
// signal.NotifyContext so that every component stops on the same trigger.
// HealthHandler serves liveness and readiness checks as JSON:
//
//	mux.Handle("/healthz", httpserver.HealthHandler(log, 2*time.Second,
//		httpserver.Check{Name: "postgres", Func: pg.Healthcheck(pool)},
//		httpserver.Check{Name: "redis", Func: redis.Healthcheck(rdb)},
//	))
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	err := srv.Run(ctx, mux)
package httpserver
