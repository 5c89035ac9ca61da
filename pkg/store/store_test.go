package store_test

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/changebus"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/match"
	"github.com/dmitrymomot/pulse/pkg/store"
)

const (
	emergencyID = "6f1c2a9e-3c1b-4f7e-9a51-2d8f0c7b4e10"
	donorID     = "0b8e7d6c-5a4b-4c3d-8e2f-1a0b9c8d7e6f"
)

func emergencyRow(status string, confirmed int) fakeRow {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return row(
		emergencyID, donorID, "O+", "critical", "City Hospital", "12B",
		"ICU", "", "", "",
		12.98, 77.60, "IN", status,
		3, 1, confirmed,
		int64(4), now, now,
	)
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(store.Migrations, store.MigrationsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		b, err := fs.ReadFile(store.Migrations, store.MigrationsDir+"/"+e.Name())
		require.NoError(t, err)
		assert.Contains(t, string(b), "-- +goose Up", e.Name())
		assert.Contains(t, string(b), "-- +goose Down", e.Name())
	}

	triggers, err := fs.ReadFile(store.Migrations, store.MigrationsDir+"/00002_change_triggers.sql")
	require.NoError(t, err)
	for _, ch := range []string{changebus.ChannelHospitalStatusUpdate, changebus.ChannelInventoryUpdate} {
		assert.Contains(t, string(triggers), "pg_notify('"+ch+"'")
	}
}

func TestEmergencies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get maps row", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{rows: []pgx.Row{emergencyRow("active", 2)}}
		e, err := store.NewEmergencies(db).Get(ctx, emergencyID)
		require.NoError(t, err)

		assert.Equal(t, emergency.UrgencyCritical, e.Urgency)
		assert.Equal(t, emergency.StatusActive, e.Status)
		assert.Equal(t, geo.Point{Lat: 12.98, Lon: 77.60}, e.Location)
		assert.Equal(t, "ICU", e.Ward)
		assert.Equal(t, 2, e.ConfirmedDonors)
		assert.EqualValues(t, 4, e.Revision)
	})

	t.Run("missing rows and ids", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}}}
		repo := store.NewEmergencies(db)

		_, err := repo.Get(ctx, emergencyID)
		assert.ErrorIs(t, err, emergency.ErrNotFound)
		_, err = repo.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, emergency.ErrNotFound)
		assert.Equal(t, 1, db.callCount(), "invalid id never reaches the database")
	})

	t.Run("match counts never decrease", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{rows: []pgx.Row{emergencyRow("active", 0)}}
		_, err := store.NewEmergencies(db).SetMatchCounts(ctx, emergencyID, 1, 0)
		require.NoError(t, err)
		assert.Contains(t, db.calls[0].sql, "GREATEST(matched_donors_count, $2)")
		assert.Contains(t, db.calls[0].sql, "revision = revision + 1")
	})

	t.Run("status transitions", func(t *testing.T) {
		t.Parallel()

		db := &fakeDB{rows: []pgx.Row{emergencyRow("resolved", 0)}}
		e, err := store.NewEmergencies(db).UpdateStatus(ctx, emergencyID, emergency.StatusResolved)
		require.NoError(t, err)
		assert.Equal(t, emergency.StatusResolved, e.Status)
		assert.Contains(t, db.calls[0].sql, "status = 'active'")

		db = &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}, row(true)}}
		_, err = store.NewEmergencies(db).UpdateStatus(ctx, emergencyID, emergency.StatusHidden)
		assert.ErrorIs(t, err, emergency.ErrInvalidTransition)

		db = &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}, row(false)}}
		_, err = store.NewEmergencies(db).UpdateStatus(ctx, emergencyID, emergency.StatusHidden)
		assert.ErrorIs(t, err, emergency.ErrNotFound)

		db = &fakeDB{}
		_, err = store.NewEmergencies(db).UpdateStatus(ctx, emergencyID, emergency.StatusActive)
		assert.ErrorIs(t, err, emergency.ErrInvalidTransition)
		assert.Zero(t, db.callCount())
	})

	t.Run("responses", func(t *testing.T) {
		t.Parallel()
		now := time.Now()
		eta := 20
		db := &fakeDB{rows: []pgx.Row{
			row(emergencyID, emergencyID, donorID, true, &eta, "confirmed", now, now),
			row("resp-1", "cancelled", now, now),
			fakeRow{err: &pgconn.PgError{Code: "23503"}},
			emergencyRow("active", 1),
		}}
		repo := store.NewEmergencies(db)

		got, err := repo.GetResponse(ctx, emergencyID, donorID)
		require.NoError(t, err)
		assert.Equal(t, emergency.ResponseConfirmed, got.Status)
		assert.Equal(t, 20, *got.ETAMinutes)

		r := &emergency.Response{EmergencyID: emergencyID, DonorID: donorID, Available: false}
		require.NoError(t, repo.UpsertResponse(ctx, r))
		assert.Equal(t, "resp-1", r.ID)
		assert.Equal(t, emergency.ResponseCancelled, r.Status, "status comes from the stored row")
		assert.Contains(t, db.calls[1].sql, "ON CONFLICT (request_id, donor_id)")
		assert.Contains(t, db.calls[1].sql, "status = $6")
		assert.Equal(t, []any{emergencyID, donorID, false, (*int)(nil), "rejected", "cancelled"}, db.calls[1].args)

		assert.ErrorIs(t, repo.UpsertResponse(ctx, r), emergency.ErrNotFound)

		e, err := repo.RecountConfirmed(ctx, emergencyID)
		require.NoError(t, err)
		assert.Equal(t, 1, e.ConfirmedDonors)
		assert.Contains(t, db.calls[3].sql, "status = 'confirmed'")

		_, err = repo.GetResponse(ctx, emergencyID, "nope")
		assert.ErrorIs(t, err, emergency.ErrResponseNotFound)
	})
}

func TestDonorsAndFacilities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	center := geo.Point{Lat: 12.98, Lon: 77.60}

	db := &fakeDB{sets: []*fakeRows{
		rowSet([]any{donorID, 1.2}, []any{emergencyID, 7.5}),
		rowSet([]any{"h1", "General", "hospital", true, "", 12.9, 77.5, 3.0}),
	}}

	cands, err := store.NewDonors(db).NearbyEligibleDonors(ctx, match.DonorQuery{
		Center: center, RadiusKm: 30, BloodGroup: "O+", CountryCode: "IN", Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, match.Candidate{DonorID: donorID, DistanceKm: 1.2, Source: match.SourceDurable}, cands[0])
	args := db.calls[0].args
	assert.Equal(t, 77.60, args[0], "longitude first for ST_MakePoint")
	assert.Equal(t, 12.98, args[1])
	assert.True(t, strings.Contains(db.calls[0].sql, "last_donation_date"))

	facs, err := store.NewFacilities(db).NearbyFacilities(ctx, match.FacilityQuery{Center: center, RadiusKm: 50, CountryCode: "IN", Limit: 20})
	require.NoError(t, err)
	require.Len(t, facs, 1)
	assert.True(t, facs[0].EmergencyCapable)
	assert.Equal(t, 3.0, facs[0].DistanceKm)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bg := "B-"
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		row     fakeRow
		wantErr error
		check   func(t *testing.T, id hub.Identity)
	}{
		{
			name: "donor is enriched",
			row:  row(true, false, nil, "NP", []string{"requester"}, &bg),
			check: func(t *testing.T, id hub.Identity) {
				assert.Equal(t, "NP", id.CountryCode)
				assert.Equal(t, "B-", id.BloodGroup)
				assert.True(t, id.IsDonor())
			},
		},
		{
			name: "expired ban passes",
			row:  row(true, true, &past, "IN", nil, nil),
			check: func(t *testing.T, id hub.Identity) {
				assert.Equal(t, "IN", id.CountryCode)
				assert.False(t, id.IsDonor())
			},
		},
		{name: "active ban", row: row(true, true, &future, "IN", nil, nil), wantErr: store.ErrUserBanned},
		{name: "permanent ban", row: row(true, true, nil, "IN", nil, nil), wantErr: store.ErrUserBanned},
		{name: "inactive", row: row(false, false, nil, "IN", nil, nil), wantErr: store.ErrUserInactive},
		{name: "unknown", row: fakeRow{err: pgx.ErrNoRows}, wantErr: store.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &fakeDB{rows: []pgx.Row{tt.row}}
			id, err := store.NewUsers(db).VerifyIdentity(ctx, hub.Identity{UserID: donorID, CountryCode: "IN"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, id)
		})
	}

	t.Run("contact", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{rows: []pgx.Row{row("+919800000000", "IN"), row("", "IN")}}
		users := store.NewUsers(db)

		c, ok, err := users.Contact(ctx, donorID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "+919800000000", c.Phone)

		_, ok, err = users.Contact(ctx, donorID)
		require.NoError(t, err)
		assert.False(t, ok, "no phone")

		_, ok, err = users.Contact(ctx, "bogus")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := &fakeDB{sets: []*fakeRows{rowSet([]any{"tok-a"}, []any{"tok-b"})}}
	tokens := store.NewTokens(db)

	got, err := tokens.ActiveTokens(ctx, donorID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b"}, got)

	require.NoError(t, tokens.Deactivate(ctx, "tok-a"))
	assert.Contains(t, db.calls[1].sql, "is_active = FALSE")
	assert.Equal(t, []any{"tok-a"}, db.calls[1].args)
}
