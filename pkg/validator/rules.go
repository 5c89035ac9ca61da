package validator

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Required rejects empty or whitespace-only strings.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Code: "required", Message: "field is required"},
	}
}

// Present rejects a missing optional value, such as a JSON bool that must be
// sent explicitly.
func Present[T any](field string, value *T) Rule {
	return Rule{
		Check: func() bool { return value != nil },
		Error: ValidationError{Field: field, Code: "required", Message: "field is required"},
	}
}

// MaxLen counts runes, not bytes.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:   field,
			Code:    "max_length",
			Message: fmt.Sprintf("must be at most %d characters long", max),
		},
	}
}

func OneOf[T comparable](field string, value T, options []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(options, value) },
		Error: ValidationError{
			Field:   field,
			Code:    "one_of",
			Message: fmt.Sprintf("must be one of: %v", options),
		},
	}
}

// Between checks min <= value <= max. NaN never passes.
func Between[T Numeric](field string, value, min, max T) Rule {
	return Rule{
		Check: func() bool {
			if f := float64(value); math.IsNaN(f) {
				return false
			}
			return value >= min && value <= max
		},
		Error: ValidationError{
			Field:   field,
			Code:    "out_of_range",
			Message: fmt.Sprintf("must be between %v and %v", min, max),
		},
	}
}

func Positive[T Numeric](field string, value T) Rule {
	return Rule{
		Check: func() bool { return value > 0 },
		Error: ValidationError{Field: field, Code: "positive", Message: "must be greater than zero"},
	}
}

func Latitude(field string, value float64) Rule {
	r := Between(field, value, -90, 90)
	r.Error.Code = "latitude"
	return r
}

func Longitude(field string, value float64) Rule {
	r := Between(field, value, -180, 180)
	r.Error.Code = "longitude"
	return r
}

// CountryCode accepts ISO 3166-1 alpha-2 region codes in any case.
func CountryCode(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != 2 {
				return false
			}
			r, err := language.ParseRegion(strings.ToUpper(value))
			return err == nil && r.IsCountry()
		},
		Error: ValidationError{Field: field, Code: "country_code", Message: "must be an ISO 3166-1 alpha-2 country code"},
	}
}

func UUID(field, value string) Rule {
	return Rule{
		Check: func() bool {
			id, err := uuid.Parse(value)
			return err == nil && id != uuid.Nil
		},
		Error: ValidationError{Field: field, Code: "uuid", Message: "must be a valid UUID"},
	}
}
