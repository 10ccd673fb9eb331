package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// jsonBodyTransport converts oauth2's form-encoded refresh request into the JSON body
// {"refresh_token": "..."} expected by the refresh endpoint.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type jsonBodyTransport struct {
	base http.RoundTripper
}

// Compile-time check that jsonBodyTransport implements http.RoundTripper.
var _ http.RoundTripper = (*jsonBodyTransport)(nil)

// RoundTrip rewrites the request body from form encoding to JSON.
func (t *jsonBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// We consume the body entirely and hand a new one to the cloned request
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	formData, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}

	jsonData := make(map[string]string, len(formData))
	for key, values := range formData {
		// grant_type is implied by the endpoint
		if key == "grant_type" {
			continue
		}
		jsonData[key] = values[0]
	}

	jsonBody, err := json.Marshal(jsonData)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON request: %w", err)
	}

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(bytes.NewReader(jsonBody))
	newReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonBody)), nil
	}
	newReq.ContentLength = int64(len(jsonBody))
	newReq.Header.Set("Content-Type", "application/json")
	newReq.Header.Set("Accept", "application/json")

	return t.base.RoundTrip(newReq)
}
