// Package handler adapts typed request handlers to net/http for the JSON API.
//
// A HandlerFunc receives the request context and a value filled by binders
// (see package binder) and returns a Response. Errors from binding, from the
// handler via Error, or from rendering all reach one ErrorHandler, which
// writes {"error": {"code", "message", "details", "requestId"}} with a status
// chosen by Classifier functions, validation errors (422), binder errors
// (400/415) or HTTPError values.
//
//	create := func(ctx context.Context, in emergency.CreateInput) handler.Response {
//		e, err := svc.CreateEmergency(ctx, in)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.Created(e)
//	}
//	r.Post("/v1/emergencies", handler.Wrap(create,
//		handler.WithBinders(binder.BindJSON()),
//		handler.WithErrorHandler(errs),
//	))
package handler
