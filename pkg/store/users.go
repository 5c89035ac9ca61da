package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/pg"
)

// Users resolves accounts for authentication and SMS delivery.
type Users struct {
	db  DBTX
	now func() time.Time
}

var (
	_ dispatch.RecipientDirectory = (*Users)(nil)
	_ hub.IdentityVerifier        = (*Users)(nil)
)

func NewUsers(db DBTX) *Users {
	return &Users{db: db, now: time.Now}
}

// Contact returns the phone of an active user. ok is false for unknown
// users and users without a phone.
func (u *Users) Contact(ctx context.Context, userID string) (dispatch.Contact, bool, error) {
	if !validID(userID) {
		return dispatch.Contact{}, false, nil
	}
	var c dispatch.Contact
	err := u.db.QueryRow(ctx, `
		SELECT COALESCE(phone, ''), country_code
		FROM users
		WHERE id = $1 AND is_active AND NOT is_banned`, userID,
	).Scan(&c.Phone, &c.CountryCode)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return dispatch.Contact{}, false, nil
		}
		return dispatch.Contact{}, false, fmt.Errorf("contact: %w", err)
	}
	return c, c.Phone != "", nil
}

// VerifyIdentity rejects inactive and banned users and fills roles,
// country and blood group from the account.
func (u *Users) VerifyIdentity(ctx context.Context, id hub.Identity) (hub.Identity, error) {
	if !validID(id.UserID) {
		return hub.Identity{}, ErrUserNotFound
	}
	var (
		active, banned bool
		banUntil       *time.Time
		country        string
		roles          []string
		bloodGroup     *string
	)
	err := u.db.QueryRow(ctx, `
		SELECT u.is_active, u.is_banned, u.ban_until, u.country_code, u.roles, d.blood_group
		FROM users u
		LEFT JOIN donors d ON d.user_id = u.id AND d.is_active
		WHERE u.id = $1`, id.UserID,
	).Scan(&active, &banned, &banUntil, &country, &roles, &bloodGroup)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return hub.Identity{}, ErrUserNotFound
		}
		return hub.Identity{}, fmt.Errorf("verify identity: %w", err)
	}
	if !active {
		return hub.Identity{}, ErrUserInactive
	}
	if banned && (banUntil == nil || banUntil.After(u.now())) {
		return hub.Identity{}, ErrUserBanned
	}

	if country != "" {
		id.CountryCode = country
	}
	if len(roles) > 0 {
		id.Roles = roles
	}
	if bloodGroup != nil {
		id.BloodGroup = *bloodGroup
		if !slices.Contains(id.Roles, hub.RoleDonor) {
			id.Roles = append(slices.Clone(id.Roles), hub.RoleDonor)
		}
	}
	return id, nil
}
