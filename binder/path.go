package binder

import (
	"fmt"
	"net/http"
)

// Path fills fields tagged `path:"name"` using extractor, typically
// chi.URLParam.
//
//	type RespondRequest struct {
//		EmergencyID string `path:"id"`
//		Available   bool   `json:"available"`
//	}
//
//	r.Post("/v1/emergencies/{id}/responses", handler.Wrap(respond,
//		handler.WithBinders(binder.Path(chi.URLParam), binder.BindJSON()),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: nil extractor", ErrInvalidPath)
		}
		return bindTagged(v, "path", ErrInvalidPath, func(name string) (string, bool) {
			s := extractor(r, name)
			return s, s != ""
		})
	}
}
