package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/warehousekit/stock-ledger/pkg/tenant"
)

// Tenant header and context key
const (
	HeaderTenantID     = "X-Tenant-ID"
	ContextKeyTenantID = "tenantId"
)

// TenantAuthConfig holds configuration for tenant middleware
type TenantAuthConfig struct {
	// Required rejects requests without a tenant header when true.
	Required bool

	// DefaultTenantID is used when no tenant header is provided and
	// Required is false.
	DefaultTenantID string
}

// DefaultTenantAuthConfig requires an explicit tenant on every request.
func DefaultTenantAuthConfig() *TenantAuthConfig {
	return &TenantAuthConfig{Required: true}
}

// TenantAuth extracts the tenant ID from the X-Tenant-ID header and adds it
// to the request context so repositories can scope their queries.
func TenantAuth(config *TenantAuthConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultTenantAuthConfig()
	}

	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)

		if tenantID == "" && !config.Required {
			tenantID = config.DefaultTenantID
		}

		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "MISSING_TENANT_CONTEXT",
				"message": "Tenant context is required",
			})
			return
		}

		ctx := tenant.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyTenantID, tenantID)

		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from the gin context.
func GetTenantID(c *gin.Context) string {
	if val, exists := c.Get(ContextKeyTenantID); exists {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}
