// Package auth issues and validates the reference server's admin session
// tokens: short-lived JWTs that gate the operator-facing account
// management surface (list accounts with their usage), entirely
// separate from the signed-envelope scheme pkg/server/api uses to
// authenticate every per-account sync request.
package auth

import "github.com/golang-jwt/jwt/v5"

// TokenType distinguishes an access token from the refresh token used to
// mint new ones, the same split the teacher's control-plane auth issues.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload for an admin session. There is exactly one
// admin identity (configured, not stored), so Claims carries no role or
// group list, unlike the multi-user claims it's grounded on.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

func (c *Claims) IsAccessToken() bool  { return c.TokenType == TokenTypeAccess }
func (c *Claims) IsRefreshToken() bool { return c.TokenType == TokenTypeRefresh }
