// internal/pkg/jwt/claims.go
package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims carried by access tokens issued by the identity service.
type Claims struct {
	IdentityID int64    `json:"identity_id"`
	Roles      []string `json:"roles,omitempty"`
	Device     string   `json:"device,omitempty"`

	jwt.RegisteredClaims
}
