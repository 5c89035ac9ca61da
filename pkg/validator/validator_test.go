package validator_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("nil when all pass", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("name", "City Hospital"),
			validator.Between("n", 5, 1, 10),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("name", "  "),
			validator.MaxLen("bed", "12345", 3),
			validator.OneOf("urgency", "extreme", []string{"low", "high"}),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)

		ve := validator.Extract(err)
		require.Len(t, ve, 3)
		assert.Equal(t, []string{"name", "bed", "urgency"}, ve.Fields())
		assert.True(t, ve.Has("bed"))
		assert.False(t, ve.Has("ward"))
		assert.Contains(t, err.Error(), "name: field is required")
	})

	t.Run("extract through wrapping", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("create: %w", validator.Apply(validator.Required("x", "")))
		assert.Len(t, validator.Extract(err), 1)
		assert.Nil(t, validator.Extract(errors.New("other")))
	})
}

func TestWhen(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.When(false, validator.MaxLen("notes", "long", 1))))

	err := validator.Apply(validator.When(true, validator.MaxLen("notes", "long", 1)))
	ve := validator.Extract(err)
	require.Len(t, ve, 1)
	assert.Equal(t, "max_length", ve[0].Code)
}

func TestRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule validator.Rule
		ok   bool
	}{
		{"latitude in range", validator.Latitude("lat", 12.97), true},
		{"latitude too large", validator.Latitude("lat", 91), false},
		{"latitude NaN", validator.Latitude("lat", math.NaN()), false},
		{"longitude edge", validator.Longitude("lon", -180), true},
		{"longitude too small", validator.Longitude("lon", -180.5), false},
		{"country upper", validator.CountryCode("cc", "IN"), true},
		{"country lower", validator.CountryCode("cc", "us"), true},
		{"country unknown", validator.CountryCode("cc", "XX"), false},
		{"country alpha3", validator.CountryCode("cc", "IND"), false},
		{"country numeric", validator.CountryCode("cc", "12"), false},
		{"uuid", validator.UUID("id", uuid.NewString()), true},
		{"uuid nil", validator.UUID("id", uuid.Nil.String()), false},
		{"uuid garbage", validator.UUID("id", "abc"), false},
		{"positive", validator.Positive("r", 0.5), true},
		{"not positive", validator.Positive("r", 0), false},
		{"max len runes", validator.MaxLen("w", "ééé", 3), true},
		{"present false", validator.Present("available", new(bool)), true},
		{"absent bool", validator.Present[bool]("available", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.rule.Check())
		})
	}
}
