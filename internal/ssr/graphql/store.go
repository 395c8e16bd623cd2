package graphql

import (
	"context"
)

// RootKey names the data client's slice of the serialized state
const RootKey = "apollo"

// Store is the per-request state container seeded from a Client
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Client() *Client {
	return s.client
}

func (s *Store) Query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	return s.client.Query(ctx, query, vars, out)
}

// InitialState is shipped to the browser as window.__APOLLO_STATE__:
// {"apollo": {"data": {...fetched fields}}}
func (s *Store) InitialState() map[string]interface{} {
	return map[string]interface{}{
		RootKey: map[string]interface{}{
			"data": s.client.Data(),
		},
	}
}
