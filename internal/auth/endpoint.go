package auth

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Paths of the authentication endpoints relative to the API base URL.
const (
	TokenPath   = "auth/token"
	RefreshPath = "auth/refresh-token"
)

// Endpoint returns the OAuth2 endpoint used for password login.
// The backend expects credentials in the form body rather than basic auth.
func Endpoint(base *url.URL) oauth2.Endpoint {
	return oauth2.Endpoint{
		TokenURL:  resolve(base, TokenPath),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// RefreshEndpoint returns the endpoint used to exchange refresh tokens.
func RefreshEndpoint(base *url.URL) oauth2.Endpoint {
	return oauth2.Endpoint{
		TokenURL:  resolve(base, RefreshPath),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func parseBase(baseURL string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base, nil
}

func resolve(base *url.URL, path string) string {
	return base.ResolveReference(&url.URL{Path: path}).String()
}
