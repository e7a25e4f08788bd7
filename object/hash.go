package object

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"
)

// Hash is the unique content hash of an object.
type Hash []byte

// Sum returns the hash of the given data.
func Sum(data []byte) Hash {
	hash := sha3.Sum256(data)
	return Hash(hash[:])
}

// Equal returns true if the given hash is equal to this hash.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h, other)
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Canonical returns the canonical JSON encoding of v: the value is
// lowered to a plain map/slice/scalar tree and re-encoded, which sorts
// every map key and applies encoding/json's fixed number formatting.
// Equal content therefore always produces equal bytes, which is the
// invariant that makes commit ids trustworthy as content fingerprints.
func Canonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}
