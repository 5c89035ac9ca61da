package changebus_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/changebus"
)

type execRecorder struct {
	sql  string
	args []any
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func TestPgPublisher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("uses pg_notify", func(t *testing.T) {
		t.Parallel()
		db := &execRecorder{}
		pub := changebus.NewPgPublisher(db)

		require.NoError(t, pub.Publish(ctx, changebus.ChannelEmergencyResponse, changebus.EmergencyResponse{EmergencyID: "e1", DonorID: "d1"}))
		assert.Equal(t, "SELECT pg_notify($1, $2)", db.sql)
		require.Len(t, db.args, 2)
		assert.Equal(t, changebus.ChannelEmergencyResponse, db.args[0])
		assert.Contains(t, db.args[1], `"emergency_id":"e1"`)
	})

	t.Run("payload limit", func(t *testing.T) {
		t.Parallel()
		db := &execRecorder{}
		err := changebus.NewPgPublisher(db).Publish(ctx, changebus.ChannelHospitalStatusUpdate,
			changebus.HospitalStatusUpdate{Name: strings.Repeat("x", 8000)})
		assert.ErrorIs(t, err, changebus.ErrPayloadTooLarge)
		assert.Empty(t, db.sql)
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()
		err := changebus.NewPgPublisher(&execRecorder{}).Publish(ctx, "emergency_deleted", nil)
		assert.ErrorIs(t, err, changebus.ErrUnknownChannel)
	})
}
