// Package logger builds *slog.Logger instances with functional options.
//
// New picks a JSON or text handler and attaches static attributes. Context
// extractors (WithContextExtractors, WithContextValue) copy request-scoped
// values onto every record unless the call site logged the same key.
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "pulse"))
//	logger.SetAsDefault(log)
//	log.LogAttrs(ctx, slog.LevelInfo, "emergency created",
//	    logger.EmergencyID(e.ID),
//	    logger.Phase("persisted"),
//	)
//
// The attribute helpers in attr.go keep key names consistent across the
// engine. Helpers for identifiers return an empty Attr for empty input and
// Error returns one for a nil error, so call sites need no guards.
package logger
