package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/binder"
	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/validator"
)

type handlers struct {
	svc   EmergencyService
	stats StatsSource
	errs  handler.ErrorHandler
}

type emergencyRef struct {
	ID string `path:"id" json:"-"`
}

type respondRequest struct {
	EmergencyID string `path:"id" json:"-"`
	Available   *bool  `json:"available"`
	ETAMinutes  *int   `json:"etaMinutes,omitempty"`
}

// The requester is always the caller; a requesterId in the body is ignored.
// The route is limited per requester when RouterOptions.EmergencyLimiter is
// set.
func (h *handlers) createEmergency() http.HandlerFunc {
	return handler.Wrap[emergency.CreateInput](func(ctx context.Context, in emergency.CreateInput) handler.Response {
		who, _ := IdentityFrom(ctx)
		in.RequesterID = who.UserID
		if in.CountryCode == "" {
			in.CountryCode = who.CountryCode
		}
		e, err := h.svc.CreateEmergency(ctx, in)
		if err != nil {
			return handler.Error(err)
		}
		return handler.Created(e)
	}, handler.WithBinders(binder.BindJSON()), handler.WithErrorHandler(h.errs))
}

func (h *handlers) snapshot() http.HandlerFunc {
	return handler.Wrap[emergencyRef](func(ctx context.Context, req emergencyRef) handler.Response {
		snap, err := h.svc.Snapshot(ctx, req.ID)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(snap)
	}, handler.WithBinders(binder.Path(chi.URLParam)), handler.WithErrorHandler(h.errs))
}

func (h *handlers) respond() http.HandlerFunc {
	return handler.Wrap[respondRequest](func(ctx context.Context, req respondRequest) handler.Response {
		who, _ := IdentityFrom(ctx)
		if !who.IsDonor() {
			return handler.Error(hub.ErrNotDonor)
		}
		if err := validator.Apply(validator.Present("available", req.Available)); err != nil {
			return handler.Error(err)
		}
		resp, err := h.svc.RecordResponse(ctx, req.EmergencyID, who.UserID, *req.Available, req.ETAMinutes)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(resp)
	}, handler.WithBinders(binder.Path(chi.URLParam), binder.BindJSON()), handler.WithErrorHandler(h.errs))
}

func (h *handlers) hide() http.HandlerFunc {
	return h.transition(h.svc.Hide)
}

func (h *handlers) resolve() http.HandlerFunc {
	return h.transition(h.svc.Resolve)
}

func (h *handlers) transition(fn func(context.Context, string) (*emergency.Emergency, error)) http.HandlerFunc {
	return handler.Wrap[emergencyRef](func(ctx context.Context, req emergencyRef) handler.Response {
		e, err := fn(ctx, req.ID)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(e)
	}, handler.WithBinders(binder.Path(chi.URLParam)), handler.WithErrorHandler(h.errs))
}
