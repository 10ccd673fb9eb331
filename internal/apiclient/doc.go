// Package apiclient talks to the finance REST API on behalf of a logged-in user.
//
// Transport is an http.RoundTripper that injects the stored bearer token and, when the
// backend answers 401, performs one coordinated token refresh shared by all concurrent
// requests before replaying each of them once:
//
//	transport, err := apiclient.NewTransport(store, authService,
//		apiclient.WithNotifier(notifier),
//		apiclient.WithRefreshTimeout(10*time.Second),
//	)
//	client, err := apiclient.New("http://localhost:8000/api", transport)
//	var accounts []finance.Account
//	err = client.Get(ctx, "accounts/", nil, &accounts)
//
// Client adds JSON encoding and normalizes every failure into an *apierror.Error.
package apiclient
