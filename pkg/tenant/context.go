package tenant

import (
	"context"
	"errors"
)

type contextKey string

const tenantIDKey contextKey = "tenantId"

// Errors for tenant context operations
var (
	ErrMissingTenantID    = errors.New("tenantId is required")
	ErrUnauthorizedAccess = errors.New("unauthorized access to tenant resource")
)

// Context carries the tenant identifier every operation is scoped to. All
// repository queries filter on it; there is no cross-tenant read path.
type Context struct {
	TenantID string `json:"tenantId"`
}

// FromContext extracts the tenant context. Returns an error when no tenant
// is set.
func FromContext(ctx context.Context) (*Context, error) {
	id := GetTenantID(ctx)
	if id == "" {
		return nil, ErrMissingTenantID
	}
	return &Context{TenantID: id}, nil
}

// ToContext adds tenant context values to a context.Context.
func ToContext(ctx context.Context, tc *Context) context.Context {
	if tc == nil || tc.TenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey, tc.TenantID)
}

// WithTenantID returns a new context with the tenant ID set
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantID extracts the tenant ID from context, empty when unset.
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(tenantIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// ValidateOwnership verifies that a resource belongs to this tenant.
func (tc *Context) ValidateOwnership(resourceTenantID string) error {
	if tc.TenantID != "" && resourceTenantID != "" && tc.TenantID != resourceTenantID {
		return ErrUnauthorizedAccess
	}
	return nil
}
