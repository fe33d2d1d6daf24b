// Package sha256 provides SHA-256 digests in the encodings used for cache
// host labels.
package sha256

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

var noPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Base32 returns the lower-case, unpadded base32 SHA-256 digest of data. The
// result is always 52 characters, which fits in one DNS label.
func Base32(data []byte) string {
	sum := sha256.Sum256(data)
	return strings.ToLower(noPadding.EncodeToString(sum[:]))
}
