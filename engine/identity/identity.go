// Package identity derives stable, content-addressed identifiers.
// Re-indexing the same logical input always produces the same id, which
// makes vector-store writes idempotent upserts instead of duplicates.
package identity

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// Derive returns a deterministic UUID for the input string: the first 16
// bytes of SHA-256(input) with the version nibble forced to 5 and the
// RFC 4122 variant bits set. The byte order of the hash is used as-is,
// so the result is identical across platforms.
func Derive(input string) string {
	sum := sha256.Sum256([]byte(input))

	var u uuid.UUID
	copy(u[:], sum[:16])

	// version 5 (0101xxxx)
	u[6] = (u[6] & 0x0F) | 0x50
	// RFC 4122 variant (10xxxxxx)
	u[8] = (u[8] & 0x3F) | 0x80

	return u.String()
}

// ChunkID derives the point id for one chunk of a multi-chunk document.
// Single-chunk documents keep the source id itself so that simple
// re-indexing stays idempotent.
func ChunkID(sourceID string, index int) string {
	return Derive(fmt.Sprintf("%s_chunk_%d", sourceID, index))
}
