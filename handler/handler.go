package handler

import (
	"context"
	"errors"
	"net/http"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc handles a bound request value R. ctx is the request context.
type HandlerFunc[R any] func(ctx context.Context, req R) Response

// Bind parses an HTTP request into v.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for a bind, handler or render error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type wrapConfig struct {
	binders      []Bind
	errorHandler ErrorHandler
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

// WithBinders appends binders applied in order to the same request value.
func WithBinders(binders ...Bind) WrapOption {
	return func(c *wrapConfig) { c.binders = append(c.binders, binders...) }
}

func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// Wrap adapts a typed HandlerFunc to http.HandlerFunc. A handler returning an
// error response renders it; a nil response is reported as ErrNilResponse.
func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: NewErrorHandler(nil)}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
		}

		resp := h(r.Context(), req)
		if resp == nil {
			cfg.errorHandler(w, r, ErrNilResponse)
			return
		}
		if er, ok := resp.(errorResponse); ok {
			cfg.errorHandler(w, r, er.err)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(w, r, err)
		}
	}
}

// Error returns a Response that is routed through the configured
// ErrorHandler, so domain errors share one mapping to status codes.
func Error(err error) Response {
	if err == nil {
		err = errors.New("handler: nil error")
	}
	return errorResponse{err: err}
}

type errorResponse struct{ err error }

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	NewErrorHandler(nil)(w, r, e.err)
	return nil
}
