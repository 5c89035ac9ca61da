package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/binder"
	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/requestid"
	"github.com/dmitrymomot/pulse/pkg/validator"
)

var errEmergencyMissing = errors.New("emergency not found")

type createRequest struct {
	Urgency string `json:"urgency"`
}

func notFound(err error) (handler.HTTPError, bool) {
	if errors.Is(err, errEmergencyMissing) {
		return handler.ErrNotFound, true
	}
	return handler.HTTPError{}, false
}

func do(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, handler.Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/emergencies", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestid.Header, "req-1")
	rec := httptest.NewRecorder()
	requestid.Middleware(h).ServeHTTP(rec, req)

	var env handler.Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestWrap(t *testing.T) {
	t.Parallel()
	errs := handler.NewErrorHandler(nil, notFound)

	wrap := func(fn handler.HandlerFunc[createRequest]) http.Handler {
		return handler.Wrap(fn, handler.WithBinders(binder.BindJSON()), handler.WithErrorHandler(errs))
	}

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(ctx context.Context, req createRequest) handler.Response {
			assert.Equal(t, "req-1", requestid.FromContext(ctx))
			return handler.Created(map[string]string{"urgency": req.Urgency})
		})
		rec, env := do(t, h, `{"urgency":"critical"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, map[string]any{"urgency": "critical"}, env.Data)
		assert.Nil(t, env.Error)
	})

	t.Run("meta", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response {
			return handler.JSON([]int{1}, handler.WithMeta(map[string]int{"total": 1}))
		})
		rec, env := do(t, h, `{}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"total": float64(1)}, env.Meta)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response { return handler.Empty() })
		rec, _ := do(t, h, `{}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("bind error", func(t *testing.T) {
		t.Parallel()
		called := false
		h := wrap(func(context.Context, createRequest) handler.Response {
			called = true
			return handler.Empty()
		})
		rec, env := do(t, h, `{"urgency":`)
		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "bad_request", env.Error.Code)
		assert.Equal(t, "req-1", env.Error.RequestID)
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(_ context.Context, req createRequest) handler.Response {
			return handler.Error(validator.Apply(
				validator.OneOf("urgency", req.Urgency, []string{"critical", "high"}),
			))
		})
		rec, env := do(t, h, `{"urgency":"whenever"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Contains(t, env.Error.Details, "urgency")
	})

	t.Run("classified domain error", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response {
			return handler.Error(errors.Join(errEmergencyMissing, errors.New("id 42")))
		})
		rec, env := do(t, h, `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", env.Error.Code)
	})

	t.Run("unknown error hides message", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response {
			return handler.Error(errors.New("pq: password authentication failed"))
		})
		rec, env := do(t, h, `{}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal_error", env.Error.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response { return nil })
		rec, _ := do(t, h, `{}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("http error value", func(t *testing.T) {
		t.Parallel()
		h := wrap(func(context.Context, createRequest) handler.Response {
			return handler.Error(handler.ErrUnauthorized)
		})
		rec, env := do(t, h, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})
}

func TestUnsupportedMediaType(t *testing.T) {
	t.Parallel()
	h := handler.Wrap[createRequest](func(context.Context, createRequest) handler.Response { return handler.Empty() },
		handler.WithBinders(binder.BindJSON()))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("urgency=high"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestContextValue(t *testing.T) {
	t.Parallel()
	key := handler.NewContextKey("identity")
	ctx := context.WithValue(context.Background(), key, "u1")

	assert.Equal(t, "u1", handler.ContextValue[string](ctx, key))
	assert.Equal(t, 0, handler.ContextValue[int](ctx, key))
	_, ok := handler.ContextValueOK[string](context.Background(), key)
	assert.False(t, ok)
}
