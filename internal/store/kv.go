package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound reports the expected absence of a key. Every other error
// from a KV is a transport fault: callers performing dedup checks must
// treat absence as "safe to proceed" and a transport fault as "abort and
// let the provider retry".
var ErrNotFound = errors.New("store: key not found")

// KV is the blob store every stateful component runs on. Semantics:
// each call is atomic at the single-key level, there are no cross-key
// transactions, and List returns the keys matching a prefix in
// unspecified order. Callers needing ordering must sort.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// GetJSON retrieves a key and unmarshals it into dest.
func GetJSON(ctx context.Context, kv KV, key string, dest interface{}) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, data)
}
