package harness

import (
	"crypto/sha256"
	"encoding/hex"
)

// digestDomain prefixes suite digests. The version suffix allows the
// algorithm to change without colliding with recorded digests.
const digestDomain = "provcheck/suite/v1"

// digest computes SHA-256 over the suite file with domain separation.
// Format: SHA256(domain + 0x00 + data)
func digest(data []byte) string {
	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
