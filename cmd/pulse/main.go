package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pulse/modules/api"
	"github.com/dmitrymomot/pulse/pkg/changebus"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/httpserver"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/match"
	"github.com/dmitrymomot/pulse/pkg/pg"
	"github.com/dmitrymomot/pulse/pkg/presence"
	"github.com/dmitrymomot/pulse/pkg/redis"
	"github.com/dmitrymomot/pulse/pkg/requestid"
	"github.com/dmitrymomot/pulse/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("pulse stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfigs()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.app.Env, cfg.app.Name),
		logger.WithLevelName(cfg.app.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)
	origin := uuid.NewString()
	log.LogAttrs(ctx, slog.LevelInfo, "starting", slog.String("origin", origin))

	pool, err := pg.Connect(ctx, cfg.pg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if !cfg.app.SkipMigrations {
		if err := pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, cfg.pg, log); err != nil {
			return err
		}
	}

	rdb, err := redis.Connect(ctx, cfg.redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := store.NewUsers(pool)
	tokens := store.NewTokens(pool)

	live := presence.NewRedisStore(rdb, presence.WithConfig(cfg.presence), presence.WithLogger(log))
	matcher := match.New(live, store.NewDonors(pool), store.NewFacilities(pool),
		match.WithConfig(cfg.match), match.WithLogger(log))

	auth := hub.NewJWTAuthenticator(cfg.hub.JWTSecret,
		hub.WithIssuer(cfg.hub.JWTIssuer),
		hub.WithDefaultCountry(cfg.hub.DefaultCountry),
		hub.WithIdentityVerifier(users),
	)
	h := hub.New(auth, hub.WithConfig(cfg.hub), hub.WithPresence(live), hub.WithLogger(log))

	listener, publisher := changeBackend(cfg.changebus, pool, rdb)
	bus := changebus.New(listener, changebus.WithConfig(cfg.changebus), changebus.WithLogger(log))
	relay := changebus.NewRelay(h, origin, cfg.changebus.LedgerSize, changebus.WithRelayLogger(log))
	relay.Register(bus)

	jobs := dispatch.NewRedisStorage(rdb, cfg.dispatch)
	dispatcher, err := dispatch.NewDispatcher(jobs, tokens, users,
		dispatch.WithDispatcherConfig(cfg.dispatch), dispatch.WithDispatcherLogger(log))
	if err != nil {
		return err
	}
	worker, err := buildWorker(ctx, cfg, jobs, tokens, rdb, log)
	if err != nil {
		return err
	}

	svc := emergency.New(store.NewEmergencies(pool), matcher, h,
		emergency.WithConfig(cfg.emergency),
		emergency.WithPresence(live),
		emergency.WithNotifier(dispatcher),
		emergency.WithPublisher(publisher, origin),
		emergency.WithStatusGate(relay),
		emergency.WithLogger(log),
	)
	h.SetActions(emergency.NewHubActions(svc))

	createLimit, err := emergencyLimiter(cfg.api, rdb)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthHandler(log, cfg.http.HealthTimeout,
		httpserver.Check{Name: "postgres", Func: pg.Healthcheck(pool)},
		httpserver.Check{Name: "redis", Func: redis.Healthcheck(rdb)},
		httpserver.Check{Name: "changebus", Func: busConnected(bus)},
	))
	r.Handle("/ws", hub.Handler(h))
	r.Mount("/", api.Router(api.RouterOptions{
		Service: svc,
		Auth:    auth,
		Stats:   dispatcher,
		Logger:  log,

		EmergencyLimiter: createLimit,
	}))

	srv := httpserver.NewFromConfig(cfg.http, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, r) })
	g.Go(func() error { return bus.Run(ctx) })
	g.Go(worker.Run(ctx))
	g.Go(func() error {
		<-ctx.Done()
		return h.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "stopped")
	return nil
}

func changeBackend(cfg changebus.Config, pool *pgxpool.Pool, rdb goredis.UniversalClient) (changebus.Listener, changebus.Publisher) {
	if cfg.Backend == changebus.BackendRedis {
		return changebus.NewRedisListener(rdb, cfg.RedisPrefix), changebus.NewRedisPublisher(rdb, cfg.RedisPrefix)
	}
	return changebus.NewPgListener(pool), changebus.NewPgPublisher(pool)
}

func buildWorker(ctx context.Context, cfg configs, jobs dispatch.Storage, tokens dispatch.TokenRegistry, rdb goredis.UniversalClient, log *slog.Logger) (*dispatch.Worker, error) {
	push, err := pushSender(ctx, cfg.fcm, log)
	if err != nil {
		return nil, err
	}
	sms, err := smsRouter(cfg, log)
	if err != nil {
		return nil, err
	}
	limiter, err := sharedLimiter(cfg.dispatch, rdb)
	if err != nil {
		return nil, err
	}
	return dispatch.NewWorker(jobs, cfg.dispatch,
		dispatch.WithPushSender(push),
		dispatch.WithSMSRouter(sms),
		dispatch.WithTokenRegistry(tokens),
		dispatch.WithLimiter(limiter),
		dispatch.WithWorkerLogger(log),
	)
}

func busConnected(b *changebus.Bus) func(context.Context) error {
	return func(context.Context) error {
		if !b.Connected() {
			return fmt.Errorf("changebus: listener not connected")
		}
		return nil
	}
}
