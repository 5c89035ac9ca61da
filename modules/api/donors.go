package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/binder"
	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/validator"
)

type presenceRequest struct {
	DonorID     string  `path:"id" json:"-"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	BloodGroup  string  `json:"bloodGroup,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
}

type donorRef struct {
	DonorID string `path:"id" json:"-"`
}

type onlineRequest struct {
	Country    string `query:"country"`
	BloodGroup string `query:"bloodGroup"`
}

type onlineCount struct {
	Country    string `json:"country"`
	BloodGroup string `json:"bloodGroup,omitempty"`
	Online     int    `json:"online"`
}

// selfDonor rejects callers acting on another donor's presence.
func selfDonor(who hub.Identity, donorID string) error {
	if !who.IsDonor() {
		return hub.ErrNotDonor
	}
	if who.UserID != donorID {
		return errNotYourDonor
	}
	return nil
}

func (h *handlers) setPresence() http.HandlerFunc {
	return handler.Wrap[presenceRequest](func(ctx context.Context, req presenceRequest) handler.Response {
		who, _ := IdentityFrom(ctx)
		if err := selfDonor(who, req.DonorID); err != nil {
			return handler.Error(err)
		}
		if err := validator.Apply(
			validator.Latitude("latitude", req.Latitude),
			validator.Longitude("longitude", req.Longitude),
		); err != nil {
			return handler.Error(err)
		}

		// Profile claims win over the body.
		bg := req.BloodGroup
		if who.BloodGroup != "" {
			bg = who.BloodGroup
		}
		cc := who.CountryCode
		if cc == "" {
			cc = req.CountryCode
		}
		err := h.svc.SetDonorAvailable(ctx, emergency.DonorAvailability{
			DonorID:     req.DonorID,
			Location:    geo.Point{Lat: req.Latitude, Lon: req.Longitude},
			BloodGroup:  bg,
			CountryCode: cc,
		})
		if err != nil {
			return handler.Error(err)
		}
		return handler.Empty()
	}, handler.WithBinders(binder.Path(chi.URLParam), binder.BindJSON()), handler.WithErrorHandler(h.errs))
}

func (h *handlers) clearPresence() http.HandlerFunc {
	return handler.Wrap[donorRef](func(ctx context.Context, req donorRef) handler.Response {
		who, _ := IdentityFrom(ctx)
		if err := selfDonor(who, req.DonorID); err != nil {
			return handler.Error(err)
		}
		if err := h.svc.SetDonorUnavailable(ctx, req.DonorID); err != nil {
			return handler.Error(err)
		}
		return handler.Empty()
	}, handler.WithBinders(binder.Path(chi.URLParam)), handler.WithErrorHandler(h.errs))
}

func (h *handlers) onlineDonors() http.HandlerFunc {
	return handler.Wrap[onlineRequest](func(ctx context.Context, req onlineRequest) handler.Response {
		if req.Country == "" {
			who, _ := IdentityFrom(ctx)
			req.Country = who.CountryCode
		}
		if err := validator.Apply(
			validator.CountryCode("country", req.Country),
			validator.When(req.BloodGroup != "",
				validator.OneOf("bloodGroup", req.BloodGroup, emergency.BloodGroups)),
		); err != nil {
			return handler.Error(err)
		}
		n, err := h.svc.OnlineDonorCount(ctx, req.Country, req.BloodGroup)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(onlineCount{Country: req.Country, BloodGroup: req.BloodGroup, Online: n})
	}, handler.WithBinders(binder.BindQuery()), handler.WithErrorHandler(h.errs))
}

func (h *handlers) notificationStats() http.HandlerFunc {
	return handler.Wrap[struct{}](func(ctx context.Context, _ struct{}) handler.Response {
		st, err := h.stats.Stats(ctx)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(st)
	}, handler.WithErrorHandler(h.errs))
}
