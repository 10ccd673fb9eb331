package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Claims are the access token claims the client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectAccessToken decodes the claims of a JWT access token without verifying its
// signature. The client never trusts these claims; they only drive status output and
// expiry bookkeeping. The server stays the authority on validity.
func InspectAccessToken(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &registered); err != nil {
		return Claims{}, fmt.Errorf("decoding access token: %w", err)
	}

	claims := Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

// withExpiry fills token.Expiry from the access token's exp claim when the server
// didn't send expires_in. Opaque tokens are left untouched.
func withExpiry(token *oauth2.Token) *oauth2.Token {
	if token == nil || !token.Expiry.IsZero() {
		return token
	}
	if claims, err := InspectAccessToken(token.AccessToken); err == nil {
		token.Expiry = claims.ExpiresAt
	}
	return token
}
