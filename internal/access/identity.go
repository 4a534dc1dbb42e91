package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Identity is an authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

// IsAdmin reports whether the caller holds the global ADMIN role.
func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// Resolver maps a bearer token to an identity. ok is false for unknown
// tokens.
type Resolver func(ctx context.Context, token string) (id Identity, ok bool, err error)

// TokenResolver resolves static API tokens: each token names a user email,
// and the user row supplies the id and global role.
func TokenResolver(db *gorm.DB, tokens map[string]string) Resolver {
	byToken := make(map[string]string, len(tokens))
	for tok, email := range tokens {
		byToken[tok] = email
	}
	return func(ctx context.Context, token string) (Identity, bool, error) {
		email, ok := byToken[token]
		if !ok || token == "" {
			return Identity{}, false, nil
		}
		var u models.User
		if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Identity{}, false, nil
			}
			return Identity{}, false, fmt.Errorf("access: resolve token for %s: %w", email, err)
		}
		return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, true, nil
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
