package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON encodes v with object keys sorted at every depth and absent
// values excluded. Two values with equal content always encode identically,
// regardless of the order fields were discovered in.
func CanonicalJSON(v Value) ([]byte, error) {
	// encoding/json sorts map keys, which gives the canonical ordering.
	return json.Marshal(plain(v))
}

// Digest returns the hex SHA-256 of the canonical encoding of data.
func Digest(data *Object) (string, error) {
	b, err := CanonicalJSON(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// shortHash is the 16 hex char prefix of the SHA-256 of b.
func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
