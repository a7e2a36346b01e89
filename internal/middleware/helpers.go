// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetIdentityID gets the authenticated identity ID from context.
func GetIdentityID(c *gin.Context) (int64, bool) {
	value, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}

	identityID, ok := value.(int64)
	if !ok {
		return 0, false
	}

	return identityID, true
}

// MustGetIdentityID gets identity ID from context or panics. Only safe behind
// the Auth middleware; the recovery middleware turns the panic into a 500.
func MustGetIdentityID(c *gin.Context) int64 {
	identityID, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return identityID
}

// GetRoles gets user roles from context.
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// HasRole checks whether the authenticated user carries a role.
func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}

// IsAuthenticated checks if request is authenticated.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("identity_id")
	return exists
}
