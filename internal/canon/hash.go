package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash domains. The version suffix leaves room for algorithm migration
// without colliding with old hashes.
const (
	// DomainEventSignature keys exact-signature dedup.
	DomainEventSignature = "planalt/event-sig/v1"
	// DomainJoinSignature keys semantic join dedup.
	DomainJoinSignature = "planalt/join-sig/v1"
	// DomainTrace fingerprints a whole archived trace.
	DomainTrace = "planalt/trace/v1"
)

// HashBytes computes SHA-256 over domain + 0x00 + data. The null separator
// prevents a crafted payload from shifting bytes across the domain
// boundary.
func HashBytes(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonically marshals v and hashes it under the given domain.
func Hash(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashBytes(domain, data), nil
}
