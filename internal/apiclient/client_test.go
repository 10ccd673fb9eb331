package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/finctl/internal/apiclient"
	"github.com/florianilch/finctl/internal/apierror"
)

func newClient(t *testing.T, handler http.Handler, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	tr := newTransport(t, storeWith(t, "a1", "r1"), &fakeRefresher{})
	client, err := apiclient.New(ts.URL+"/api", tr, opts...)
	require.NoError(t, err)
	return client
}

func TestClientResolvesPathsAgainstBaseURL(t *testing.T) {
	var gotPath, gotQuery string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[]`)
	}))

	var out []map[string]any
	err := client.Get(context.Background(), "/accounts/", url.Values{"workspace_id": {"3"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "/api/accounts/", gotPath)
	assert.Equal(t, "workspace_id=3", gotQuery)
	assert.Equal(t, "http", client.BaseURL().Scheme)
	assert.Equal(t, "/api/", client.BaseURL().Path)
}

func TestClientRejectsAbsolutePaths(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())

	err := client.Get(context.Background(), "https://evil.example/accounts/", nil, nil)
	require.ErrorIs(t, err, apierror.ErrValidation)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.MessageInvalidRequest, apiErr.Message)
	assert.ErrorContains(t, apiErr.Err, "must be relative")
}

func TestClientUnencodableBodyIsInvalidRequest(t *testing.T) {
	var hits int
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	err := client.Post(context.Background(), "/accounts/", map[string]any{"ch": make(chan int)}, nil)
	require.ErrorIs(t, err, apierror.ErrValidation)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.MessageInvalidRequest, apiErr.Message)
	assert.ErrorContains(t, apiErr.Err, "encoding request body")
	assert.Zero(t, hits)
}

func TestClientMalformedSuccessBodyIsAPIError(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": `)
	}))

	var out map[string]any
	err := client.Get(context.Background(), "/accounts/1", nil, &out)
	require.ErrorIs(t, err, apierror.ErrAPI)
	assert.NotErrorIs(t, err, apierror.ErrNetwork)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.MessageInvalidBody, apiErr.Message)
	assert.Equal(t, http.StatusOK, apiErr.Status)
}

func TestClientSendsJSONBody(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "finctl-test", r.Header.Get("User-Agent"))

		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in["id"] = 7
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}), apiclient.WithUserAgent("finctl-test"))

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := client.Post(context.Background(), "counterparties/", map[string]string{"name": "ACME"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "ACME", out.Name)
}

func TestClientNormalizesErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apierror.Kind
		wantMsg  string
	}{
		{
			name:     "validation",
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[{"loc":["body","name"],"msg":"field required"}]}`,
			wantKind: apierror.KindValidation,
			wantMsg:  apierror.MessageValidation,
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"detail":"Budget not found"}`,
			wantKind: apierror.KindAPI,
			wantMsg:  "Budget not found",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `Internal Server Error`,
			wantKind: apierror.KindAPI,
			wantMsg:  apierror.MessageRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			err := client.Delete(context.Background(), "budgets/1")

			var apiErr *apierror.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestClientNoContent(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var out map[string]any
	require.NoError(t, client.Put(context.Background(), "contracts/2", map[string]any{}, &out))
	assert.Nil(t, out)
}

func TestClientTimeoutIsNetworkError(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}), apiclient.WithTimeout(20*time.Millisecond))

	err := client.Get(context.Background(), "accounts/", nil, nil)
	assert.ErrorIs(t, err, apierror.ErrNetwork)
}

func TestNewClientValidation(t *testing.T) {
	tr := newTransport(t, storeWith(t, "a1", "r1"), &fakeRefresher{})

	_, err := apiclient.New("not a url", tr)
	assert.Error(t, err)

	_, err = apiclient.New("http://localhost:8000/api", nil)
	assert.Error(t, err)
}
