package jsonval

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of hash bytes kept in a fingerprint.
const fingerprintLen = 16

// Fingerprint returns a deterministic, opaque token for the content of v.
//
// encoding/json writes object keys in sorted order and numbers in their
// shortest form, so values that are Equal after normalization produce the
// same fingerprint.
func Fingerprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:fingerprintLen])
}
