package validator

import (
	"errors"
	"strings"
)

// ValidationError describes one rejected field. Code is a stable machine
// readable identifier such as "required" or "out_of_range".
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors is returned by Apply when at least one rule fails.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidationFailed) hold for any ValidationErrors.
func (ve ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

func (ve ValidationErrors) Has(field string) bool {
	for _, e := range ve {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Fields lists the rejected fields in first-seen order.
func (ve ValidationErrors) Fields() []string {
	seen := make(map[string]struct{}, len(ve))
	out := make([]string, 0, len(ve))
	for _, e := range ve {
		if _, ok := seen[e.Field]; ok {
			continue
		}
		seen[e.Field] = struct{}{}
		out = append(out, e.Field)
	}
	return out
}

// Rule pairs a check with the error reported when it fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply runs every rule and collects failures. Rules are not short-circuited,
// so a caller sees all problems with its input at once.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, r := range rules {
		if !r.Check() {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// When enables rules only if cond holds, for optional fields.
func When(cond bool, rules ...Rule) Rule {
	return Rule{
		Check: func() bool {
			if !cond {
				return true
			}
			for _, r := range rules {
				if !r.Check() {
					return false
				}
			}
			return true
		},
		Error: firstError(rules),
	}
}

func firstError(rules []Rule) ValidationError {
	if len(rules) == 0 {
		return ValidationError{}
	}
	return rules[0].Error
}

// Extract returns the ValidationErrors inside err, or nil.
func Extract(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
