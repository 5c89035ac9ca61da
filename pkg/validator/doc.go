// Package validator provides rule-based input validation.
//
// A Rule is a closure plus the error reported when it returns false. Apply
// evaluates all rules and returns ValidationErrors listing every failure:
//
//	err := validator.Apply(
//		validator.Required("hospitalName", in.HospitalName),
//		validator.Latitude("latitude", in.Location.Lat),
//		validator.CountryCode("countryCode", in.CountryCode),
//	)
//
// ValidationErrors matches ErrValidationFailed with errors.Is.
package validator
