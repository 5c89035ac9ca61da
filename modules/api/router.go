package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

// EmergencyService is the part of *emergency.Service exposed over REST.
type EmergencyService interface {
	CreateEmergency(ctx context.Context, in emergency.CreateInput) (*emergency.Emergency, error)
	RecordResponse(ctx context.Context, emergencyID, donorID string, available bool, eta *int) (*emergency.Response, error)
	Hide(ctx context.Context, id string) (*emergency.Emergency, error)
	Resolve(ctx context.Context, id string) (*emergency.Emergency, error)
	Snapshot(ctx context.Context, id string) (emergency.Snapshot, error)
	SetDonorAvailable(ctx context.Context, d emergency.DonorAvailability) error
	SetDonorUnavailable(ctx context.Context, donorID string) error
	OnlineDonorCount(ctx context.Context, countryCode, bloodGroup string) (int, error)
}

// StatsSource reports notification queue depth.
type StatsSource interface {
	Stats(ctx context.Context) (dispatch.Stats, error)
}

// RouterOptions configures the /v1 API. Stats and EmergencyLimiter are
// optional.
type RouterOptions struct {
	Service EmergencyService
	Auth    hub.Authenticator
	Stats   StatsSource
	// EmergencyLimiter caps emergency creation per requester.
	EmergencyLimiter ratelimit.Limiter
	Logger           *slog.Logger
}

// Router returns the authenticated /v1 routes. Mount it at the root:
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//	r.Mount("/", api.Router(api.RouterOptions{Service: svc, Auth: auth}))
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	errs := handler.NewErrorHandler(log, classify)
	h := &handlers{svc: opts.Service, stats: opts.Stats, errs: errs}

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(opts.Auth, errs))

		create := r.With()
		if opts.EmergencyLimiter != nil {
			create = r.With(ratelimit.Middleware(opts.EmergencyLimiter, requesterKey,
				func(w http.ResponseWriter, r *http.Request, _ *ratelimit.Result) {
					errs(w, r, handler.ErrTooManyRequests)
				}))
		}
		create.Post("/emergencies", h.createEmergency())
		r.Get("/emergencies/{id}", h.snapshot())
		r.Post("/emergencies/{id}/responses", h.respond())
		r.Post("/emergencies/{id}/hide", h.hide())
		r.Post("/emergencies/{id}/resolve", h.resolve())

		r.Put("/donors/{id}/presence", h.setPresence())
		r.Delete("/donors/{id}/presence", h.clearPresence())
		r.Get("/donors/online", h.onlineDonors())

		if opts.Stats != nil {
			r.Get("/notifications/stats", h.notificationStats())
		}
	})
	return r
}

func requesterKey(r *http.Request) string {
	who, ok := IdentityFrom(r.Context())
	if !ok || who.UserID == "" {
		return ""
	}
	return "emergencies:" + who.UserID
}
