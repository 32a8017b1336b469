package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key layout constants.
const (
	fingerprintLen = 8
	shortDigestLen = 16
	handlePrefix   = "https://cache.flue.internal/compute/"
)

// HashHex returns the lowercase hex SHA-256 of v's canonical form.
func HashHex(v any) (string, error) {
	s, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

// Key derives the content-addressed cache key for a compute request under a
// dataset version. Identical inputs always yield the identical key; changing
// any one of the three inputs yields a different key.
func Key(profileID string, overrides map[string]float64, datasetVersion string) (string, error) {
	if overrides == nil {
		overrides = map[string]float64{}
	}
	return HashHex(map[string]any{
		"profile_id":      profileID,
		"overrides":       overrides,
		"dataset_version": datasetVersion,
	})
}

// HandleURL wraps a cache key in the synthetic lookup URL used as the store
// handle. Scheme and host are fixed and carry no network meaning.
func HandleURL(key string) string {
	return handlePrefix + key
}

// Fingerprint returns the first 8 hex characters of the SHA-256 of the raw
// string s. Dataset identifiers carry it as their version tag.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// ShortDigest returns the first 16 hex characters of the SHA-256 of v's
// canonical form.
func ShortDigest(v any) (string, error) {
	h, err := HashHex(v)
	if err != nil {
		return "", err
	}
	return h[:shortDigestLen], nil
}
