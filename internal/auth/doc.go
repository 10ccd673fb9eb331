// Package auth implements the backend's authentication endpoints.
//
// Login exchanges a username and password at POST auth/token using the OAuth2
// password-grant shape and persists the returned credentials. Refresh exchanges a
// refresh token at POST auth/refresh-token; the backend expects a JSON body there, so
// the form-encoded request produced by golang.org/x/oauth2 is rewritten on the way out:
//
//	svc, err := auth.New("http://localhost:8000/api", store)
//	token, err := svc.Login(ctx, "alice", "secret")
//	fresh, err := svc.Refresh(ctx, token.RefreshToken)
//
// Service implements apiclient.Refresher. Its requests never go through
// apiclient.Transport, so a rejected login can't trigger a refresh.
package auth
