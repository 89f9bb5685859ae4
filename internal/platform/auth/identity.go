package auth

import "context"

const (
	RoleUser    = "user"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

type Identity struct {
	UserID string
	Role   string
}

// Premium reports whether the identity unlocks premium link features.
func (i Identity) Premium() bool {
	return i.Role == RolePremium || i.Role == RoleAdmin
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey{})
	id, ok := v.(Identity)
	return id, ok
}
