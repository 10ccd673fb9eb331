package finance

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Filter narrows list and report queries. Nil fields are omitted.
type Filter struct {
	WorkspaceID    *int
	AccountID      *int
	ArticleID      *int
	CounterpartyID *int
	DateFrom       *openapi_types.Date
	DateTo         *openapi_types.Date
	Skip           *int
	Limit          *int
}

// Values encodes the filter as form-style query parameters.
func (f Filter) Values() (url.Values, error) {
	values := url.Values{}
	params := []struct {
		name  string
		value any
	}{
		{"workspace_id", f.WorkspaceID},
		{"account_id", f.AccountID},
		{"dds_article_id", f.ArticleID},
		{"counterparty_id", f.CounterpartyID},
		{"date_from", f.DateFrom},
		{"date_to", f.DateTo},
		{"skip", f.Skip},
		{"limit", f.Limit},
	}
	for _, p := range params {
		if err := addParam(values, p.name, p.value); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// addParam encodes value under name unless it is a nil pointer.
func addParam(values url.Values, name string, value any) error {
	switch v := value.(type) {
	case *int:
		if v == nil {
			return nil
		}
		value = *v
	case *openapi_types.Date:
		if v == nil {
			return nil
		}
		value = *v
	}

	encoded, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		return fmt.Errorf("encoding query parameter %s: %w", name, err)
	}
	parsed, err := url.ParseQuery(encoded)
	if err != nil {
		return fmt.Errorf("encoding query parameter %s: %w", name, err)
	}
	for key, vs := range parsed {
		for _, v := range vs {
			values.Add(key, v)
		}
	}
	return nil
}
