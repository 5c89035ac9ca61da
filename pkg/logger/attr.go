package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error returns an empty Attr for a nil error, so it can be passed unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors", keyed by position.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func Event(name string) slog.Attr { return slog.String("event", name) }

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

func Attempt(n int) slog.Attr { return slog.Int("attempt", n) }

func EmergencyID(id string) slog.Attr { return idAttr("emergency_id", id) }

func DonorID(id string) slog.Attr { return idAttr("donor_id", id) }

func UserID(id string) slog.Attr { return idAttr("user_id", id) }

func ConnID(id string) slog.Attr { return idAttr("conn_id", id) }

func JobID(id string) slog.Attr { return idAttr("job_id", id) }

func RequestID(id string) slog.Attr { return idAttr("request_id", id) }

func Room(name string) slog.Attr { return idAttr("room", name) }

func Channel(name string) slog.Attr { return idAttr("channel", name) }

func Phase(name string) slog.Attr { return slog.String("phase", name) }

func idAttr(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}
