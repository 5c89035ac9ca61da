package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/pulse/binder"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/requestid"
	"github.com/dmitrymomot/pulse/pkg/validator"
)

// Classifier maps a domain error to an HTTPError. It reports false for
// errors it does not recognise.
type Classifier func(err error) (HTTPError, bool)

// NewErrorHandler returns an ErrorHandler that renders a JSON error envelope.
// Classifiers run first, in order; then binder and validation errors are
// mapped; anything else becomes a 500 whose message is not exposed.
func NewErrorHandler(log *slog.Logger, classifiers ...Classifier) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("http"))

	return func(w http.ResponseWriter, r *http.Request, err error) {
		ctx := r.Context()
		status, detail := classify(err, classifiers)
		detail.RequestID = requestid.FromContext(ctx)

		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "request failed",
			logger.RequestID(detail.RequestID),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)

		if rerr := jsonError(status, detail).Render(w, r); rerr != nil {
			log.LogAttrs(ctx, slog.LevelDebug, "write error response", logger.Error(rerr))
		}
	}
}

func classify(err error, classifiers []Classifier) (int, *ErrorDetail) {
	for _, c := range classifiers {
		if he, ok := c(err); ok {
			return he.Code, &ErrorDetail{Code: he.Key, Message: err.Error()}
		}
	}

	if ve := validator.Extract(err); ve != nil {
		details := make(map[string][]string, len(ve))
		for _, e := range ve {
			details[e.Field] = append(details[e.Field], e.Message)
		}
		return http.StatusUnprocessableEntity, &ErrorDetail{
			Code:    ErrUnprocessableEntity.Key,
			Message: "validation failed",
			Details: details,
		}
	}

	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, &ErrorDetail{Code: he.Key, Message: http.StatusText(he.Code)}
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, &ErrorDetail{Code: ErrUnsupportedMediaType.Key, Message: err.Error()}
	case errors.Is(err, binder.ErrInvalidJSON), errors.Is(err, binder.ErrInvalidQuery), errors.Is(err, binder.ErrInvalidPath):
		return http.StatusBadRequest, &ErrorDetail{Code: ErrBadRequest.Key, Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{Code: ErrInternalServerError.Key, Message: "internal error"}
}
