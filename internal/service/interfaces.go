// Package service defines the contracts between the ledger and the systems
// it persists to: the remote document store, the local key-value store and
// the authentication boundary.
package service

import (
	"context"
)

// OwnerField is the document field every owned record is queried by.
const OwnerField = "userId"

// Document is a record in wire form: field name to JSON-compatible value.
type Document map[string]any

// ID returns the document's "id" field, or "" when it is missing.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Query selects documents of one collection that belong to one owner.
// OrderBy names a field to sort on; empty keeps insertion order.
type Query struct {
	Collection string
	OwnerID    string
	OrderBy    string
	Descending bool
}

// DocumentStore defines the contract for the remote persistence layer.
// Implementations classify failures as common.ErrUnavailable (the store
// could not be reached) or common.ErrRemote (the store answered with an
// error); Get reports a missing document with common.ErrNotFound.
type DocumentStore interface {
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, doc Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Listen calls fn with the full result set of q now and after every
	// change to it, until the returned stop function is called or ctx ends.
	// fn is never called after stop returns.
	Listen(ctx context.Context, q Query, fn func([]Document)) (stop func(), err error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// KeyValueStore is device-local storage with a plain and a secret namespace.
// Values are JSON encoded. Get reports whether the key existed.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dst any) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)

	SetSecret(ctx context.Context, key string, value any) error
	GetSecret(ctx context.Context, key string, dst any) (bool, error)
	DeleteSecret(ctx context.Context, key string) error
	ClearSecret(ctx context.Context) error
}

// Identity is what the authentication boundary knows about a signed-in user.
type Identity struct {
	UserID      string `json:"sub"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
}

// Authenticator turns a bearer credential into an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}
