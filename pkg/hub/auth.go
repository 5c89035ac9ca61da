package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const RoleDonor = "donor"

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID      string   `json:"userId"`
	CountryCode string   `json:"countryCode"`
	Roles       []string `json:"roles,omitempty"`
	BloodGroup  string   `json:"bloodGroup,omitempty"`
}

func (i Identity) IsDonor() bool { return slices.Contains(i.Roles, RoleDonor) }

// Authenticator turns a connection token into an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// IdentityVerifier checks the principal against durable state (active,
// not banned) and may enrich it, e.g. with roles and blood group.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, id Identity) (Identity, error)
}

// Claims is the JWT payload accepted by JWTAuthenticator. The user id is
// read from userId, falling back to sub.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"userId,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// JWTAuthenticator validates HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret         []byte
	issuer         string
	defaultCountry string
	verifier       IdentityVerifier
}

type AuthOption func(*JWTAuthenticator)

func WithIssuer(iss string) AuthOption {
	return func(a *JWTAuthenticator) { a.issuer = iss }
}

// WithDefaultCountry is used when neither the token nor the verifier sets one.
func WithDefaultCountry(cc string) AuthOption {
	return func(a *JWTAuthenticator) { a.defaultCountry = strings.ToUpper(cc) }
}

func WithIdentityVerifier(v IdentityVerifier) AuthOption {
	return func(a *JWTAuthenticator) { a.verifier = v }
}

func NewJWTAuthenticator(secret string, opts ...AuthOption) *JWTAuthenticator {
	a := &JWTAuthenticator{secret: []byte(secret), defaultCountry: "IN"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Join(ErrUnauthorized, err)
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return Identity{}, errors.Join(ErrUnauthorized, fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}

	id := Identity{
		UserID:      claims.UserID,
		CountryCode: strings.ToUpper(claims.CountryCode),
		Roles:       claims.Roles,
	}
	if id.UserID == "" {
		id.UserID = claims.Subject
	}
	if id.UserID == "" {
		return Identity{}, errors.Join(ErrUnauthorized, errors.New("token has no subject"))
	}

	if a.verifier != nil {
		if id, err = a.verifier.VerifyIdentity(ctx, id); err != nil {
			return Identity{}, errors.Join(ErrUnauthorized, err)
		}
	}
	if id.CountryCode == "" {
		id.CountryCode = a.defaultCountry
	}
	return id, nil
}

// IssueToken signs an HS256 token for id. Used by tooling and tests; the
// production tokens come from the auth service.
func (a *JWTAuthenticator) IssueToken(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:      id.UserID,
		CountryCode: id.CountryCode,
		Roles:       id.Roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
