package binder

import "net/http"

// BindQuery fills fields tagged `query:"name"` from the URL query string.
// Missing parameters leave the field untouched.
func BindQuery() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindTagged(v, "query", ErrInvalidQuery, func(name string) (string, bool) {
			if !q.Has(name) {
				return "", false
			}
			return q.Get(name), true
		})
	}
}
