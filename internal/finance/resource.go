package finance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Doer sends a JSON request to the API. *apiclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body any, params url.Values, out any) error
}

// Resource provides CRUD operations on the collection at path.
type Resource[T any] struct {
	client Doer
	path   string
}

// NewResource creates a Resource for the collection at path, e.g. "accounts/".
func NewResource[T any](client Doer, path string) Resource[T] {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return Resource[T]{client: client, path: path}
}

// Path returns the collection path.
func (r Resource[T]) Path() string {
	return r.path
}

// List returns the collection filtered by params.
func (r Resource[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	var items []T
	if err := r.client.Do(ctx, http.MethodGet, r.path, nil, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns a single item.
func (r Resource[T]) Get(ctx context.Context, id int) (T, error) {
	var item T
	err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &item)
	return item, err
}

// Create posts in to the collection and returns the created item.
func (r Resource[T]) Create(ctx context.Context, in any) (T, error) {
	var item T
	err := r.client.Do(ctx, http.MethodPost, r.path, in, nil, &item)
	return item, err
}

// Update replaces the item with in and returns the stored result.
func (r Resource[T]) Update(ctx context.Context, id int, in any) (T, error) {
	var item T
	err := r.client.Do(ctx, http.MethodPut, r.itemPath(id), in, nil, &item)
	return item, err
}

// Delete removes the item.
func (r Resource[T]) Delete(ctx context.Context, id int) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

// Fetch lists the collection, or gets a single item when id is non-nil.
// Results are returned untyped for generic consumers such as the CLI.
func (r Resource[T]) Fetch(ctx context.Context, id *int, params url.Values) (any, error) {
	if id != nil {
		return r.Get(ctx, *id)
	}
	return r.List(ctx, params)
}

func (r Resource[T]) itemPath(id int) string {
	return r.path + strconv.Itoa(id)
}

// Fetcher is the untyped view of a Resource.
type Fetcher interface {
	Path() string
	Fetch(ctx context.Context, id *int, params url.Values) (any, error)
}

// ParseID parses a resource identifier given on the command line.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
