package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const (
	sessionKeyPrefix = "session:"
	emailKeyPrefix   = "email:"
)

// FulfillmentRecord is the persisted result of one fulfilled checkout
// session. Created exactly once, never mutated or deleted.
type FulfillmentRecord struct {
	OrderID    string `json:"order_id"`
	SessionID  string `json:"session_id"`
	EmailHash  string `json:"email_hash"`
	LicenseKey string `json:"license_key"`
	CreatedAt  string `json:"created_at"`
	Product    string `json:"product"`
}

// FulfillmentStore persists license records under two keys: the session
// key is the dedup gate, the email key makes records range-listable by
// purchaser email hash.
type FulfillmentStore struct {
	kv KV
}

func NewFulfillmentStore(kv KV) *FulfillmentStore {
	return &FulfillmentStore{kv: kv}
}

// Save writes the record under both keys. The session key is written
// first: if the second write is lost, the dedup gate still holds and the
// purchaser can recover via support. There is no compensating
// transaction; the store offers no cross-key atomicity.
func (s *FulfillmentStore) Save(ctx context.Context, record FulfillmentRecord) error {
	sessionKey := sessionKeyPrefix + record.SessionID
	emailKey := fmt.Sprintf("%s%s:%s:%s", emailKeyPrefix, record.EmailHash, record.CreatedAt, record.SessionID)

	if err := SetJSON(ctx, s.kv, sessionKey, record); err != nil {
		return err
	}
	return SetJSON(ctx, s.kv, emailKey, record)
}

// GetBySession returns the record for a checkout session, or ErrNotFound.
func (s *FulfillmentStore) GetBySession(ctx context.Context, sessionID string) (*FulfillmentRecord, error) {
	var record FulfillmentRecord
	if err := GetJSON(ctx, s.kv, sessionKeyPrefix+sessionID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByEmailHash returns every record issued to an email hash, newest
// first. The KV lists keys in unspecified order, so ordering happens
// here.
func (s *FulfillmentStore) ListByEmailHash(ctx context.Context, emailHash string) ([]FulfillmentRecord, error) {
	keys, err := s.kv.List(ctx, emailKeyPrefix+emailHash+":")
	if err != nil {
		return nil, err
	}

	records := make([]FulfillmentRecord, 0, len(keys))
	for _, key := range keys {
		var record FulfillmentRecord
		if err := GetJSON(ctx, s.kv, key, &record); err != nil {
			// A key listed but deleted between calls is absence, not a fault.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return records, nil
}
