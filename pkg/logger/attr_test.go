package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

func TestErrorAttrs(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))

	grouped := logger.Errors(err, nil, errors.New("second"))
	require.Equal(t, slog.KindGroup, grouped.Value.Kind())
	g := grouped.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
}

func TestIdentifierAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr slog.Attr
		key  string
	}{
		{logger.EmergencyID("e1"), "emergency_id"},
		{logger.DonorID("e1"), "donor_id"},
		{logger.UserID("e1"), "user_id"},
		{logger.ConnID("e1"), "conn_id"},
		{logger.JobID("e1"), "job_id"},
		{logger.Room("e1"), "room"},
		{logger.Channel("e1"), "channel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, "e1", tt.attr.Value.String())
	}

	assert.True(t, logger.DonorID("").Equal(slog.Attr{}))
}

func TestValueAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2*time.Second, logger.Duration(2*time.Second).Value.Duration())
	assert.Equal(t, int64(3), logger.Attempt(3).Value.Int64())
	assert.Equal(t, "matched", logger.Phase("matched").Value.String())

	g := logger.Group("req", logger.Component("hub"), logger.Event("join"))
	require.Len(t, g.Value.Group(), 2)
}
