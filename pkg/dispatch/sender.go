package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// PushSender delivers a push notification to one device token. It returns
// ErrInvalidToken when the gateway rejects the token for good.
type PushSender interface {
	SendPush(ctx context.Context, token string, msg Message) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// LogSender writes notifications to the log instead of delivering them.
// It is used in development and when no provider is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(l *slog.Logger) *LogSender {
	if l == nil {
		l = slog.Default()
	}
	return &LogSender{log: l}
}

func (s *LogSender) SendPush(ctx context.Context, token string, msg Message) error {
	s.log.LogAttrs(ctx, slog.LevelInfo, "push notification",
		logger.Component("dispatch"),
		logger.EmergencyID(msg.EmergencyID),
		slog.String("token_suffix", suffix(token, 6)),
		slog.String("title", msg.Title),
	)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, phone, text string) error {
	s.log.LogAttrs(ctx, slog.LevelInfo, "sms notification",
		logger.Component("dispatch"),
		slog.String("phone_suffix", suffix(phone, 4)),
		slog.Int("length", len(text)),
	)
	return nil
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// classify maps an HTTP failure onto the retry policy: 429 and 5xx are
// retried, other 4xx are permanent.
func classify(provider string, resp *resty.Response) error {
	status := resp.StatusCode()
	err := fmt.Errorf("%s: unexpected status %d: %s", provider, status, truncate(resp.String(), 256))
	if status == http.StatusTooManyRequests || status >= 500 {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
