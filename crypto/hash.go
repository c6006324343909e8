package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Hash returns the lowercase-hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MessageID derives a deterministic message identifier:
// hash(content ∥ author_id ∥ timestamp).
func MessageID(content, authorID string, timestampMs int64) string {
	buf := make([]byte, 0, len(content)+len(authorID)+20)
	buf = append(buf, content...)
	buf = append(buf, authorID...)
	buf = append(buf, strconv.FormatInt(timestampMs, 10)...)
	return Hash(buf)
}
