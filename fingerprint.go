package smartfs

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprint computes a block's content fingerprint: SHA-256, rendered
// as 64 lowercase hex characters, per spec.md §4.3. No ecosystem SHA-256
// library appears anywhere in the retrieved pack (the original C engine
// uses OpenSSL's SHA256 directly), so this uses the stdlib implementation
// — see DESIGN.md.
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
