package marketcache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ferro-labs/market-cache/storage"
)

// wrap encodes value into a storage record that expires ttl after now.
func wrap(key string, value any, ttl time.Duration, now time.Time) (storage.Record, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return storage.Record{}, fmt.Errorf("encode value: %w", err)
	}
	return storage.Record{
		Key:       key,
		Value:     data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// expired reports now >= rec.ExpiresAt.
func expired(rec storage.Record, now time.Time) bool {
	return !now.Before(rec.ExpiresAt)
}

// unwrap decodes the record payload into dst.
func unwrap(rec storage.Record, dst any) error {
	if err := json.Unmarshal(rec.Value, dst); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}
