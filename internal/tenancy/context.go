package tenancy

import "context"

type ctxKey string

const identityKey ctxKey = "vitalhub.identity"

// Role describes the caller's role within a tenant.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleClient       Role = "client"
)

// Identity carries the authenticated caller supplied by the identity layer.
// Scheduling trusts it completely and performs no authentication itself.
type Identity struct {
	UserID   string
	TenantID string
	Role     Role
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the caller identity if present.
func FromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.TenantID != ""
}
