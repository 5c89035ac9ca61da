package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderTwilio = "twilio"
	ProviderMSG91  = "msg91"
	ProviderLog    = "log"
)

// Route selects the SMS provider for a country.
type Route struct {
	Provider string `yaml:"provider"`
	Enabled  *bool  `yaml:"enabled"`
}

func (r Route) enabled() bool { return r.Enabled == nil || *r.Enabled }

// Routes is the SMS routing table, loaded from YAML:
//
//	default:
//	  provider: twilio
//	countries:
//	  IN:
//	    provider: msg91
//	  NP:
//	    enabled: false
type Routes struct {
	Default   Route            `yaml:"default"`
	Countries map[string]Route `yaml:"countries"`
}

// DefaultRoutes sends everything through provider.
func DefaultRoutes(provider string) Routes {
	return Routes{Default: Route{Provider: provider}}
}

func ParseRoutes(b []byte) (Routes, error) {
	var r Routes
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return Routes{}, errors.Join(ErrInvalidRoutes, err)
	}
	norm := make(map[string]Route, len(r.Countries))
	for cc, route := range r.Countries {
		norm[strings.ToUpper(cc)] = route
	}
	r.Countries = norm
	return r, nil
}

func LoadRoutes(path string) (Routes, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, errors.Join(ErrInvalidRoutes, err)
	}
	return ParseRoutes(b)
}

// Lookup returns the route for a country, falling back to the default.
func (r Routes) Lookup(countryCode string) Route {
	route, ok := r.Countries[strings.ToUpper(countryCode)]
	if !ok {
		return r.Default
	}
	if route.Provider == "" {
		route.Provider = r.Default.Provider
	}
	return route
}

// SMSRouter picks a sender per recipient country.
type SMSRouter struct {
	routes  Routes
	senders map[string]SMSSender
}

// NewSMSRouter validates that every provider named in routes has a sender.
func NewSMSRouter(routes Routes, senders map[string]SMSSender) (*SMSRouter, error) {
	check := func(where string, r Route) error {
		if !r.enabled() || r.Provider == "" {
			return nil
		}
		if _, ok := senders[r.Provider]; !ok {
			return fmt.Errorf("%w: %q for %s", ErrUnknownProvider, r.Provider, where)
		}
		return nil
	}
	if err := check("default", routes.Default); err != nil {
		return nil, err
	}
	for cc := range routes.Countries {
		if err := check(cc, routes.Lookup(cc)); err != nil {
			return nil, err
		}
	}
	return &SMSRouter{routes: routes, senders: senders}, nil
}

// Send delivers text using the route of countryCode.
func (r *SMSRouter) Send(ctx context.Context, countryCode, phone, text string) error {
	route := r.routes.Lookup(countryCode)
	if !route.enabled() {
		return fmt.Errorf("%w: %w %s", ErrPermanent, ErrSMSDisabled, countryCode)
	}
	sender, ok := r.senders[route.Provider]
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrPermanent, ErrUnknownProvider, route.Provider)
	}
	return sender.SendSMS(ctx, phone, text)
}
