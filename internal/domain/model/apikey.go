package model

import "time"

// APIKeyPrefix is prepended to every generated key so keys are visually
// identifiable in logs and listings.
const APIKeyPrefix = "gg_"

// APIKey is a long-lived opaque credential for programmatic access. Keys do
// not expire; they remain valid until explicitly revoked.
type APIKey struct {
	ID     int64
	Key    string
	UserID string
	Name   string
	// MaskedKey is the display form of the key. Populated by listings, where
	// Key itself is left empty so full key material never leaves the store.
	MaskedKey  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	IsActive   bool
}

// Masked returns a non-reversible display form of the key: the prefix plus
// the last four characters. Listings expose only this form, never the full
// key material.
func (k *APIKey) Masked() string {
	const tail = 4
	if len(k.Key) <= len(APIKeyPrefix)+tail {
		return APIKeyPrefix + "****"
	}
	return APIKeyPrefix + "****" + k.Key[len(k.Key)-tail:]
}
