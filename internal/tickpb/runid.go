package tickpb

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// runIDEncoding is base32hex (RFC 4648) lowercase without padding.
// Alphabet 0-9a-v preserves lexicographic sort order.
var runIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// NewRunID mints a new run identifier: a UUIDv7 rendered as a 26-character
// lowercase base32hex string. UUIDv7 embeds a millisecond timestamp and
// guarantees monotonically increasing, lexicographically sortable IDs —
// useful for runs started in quick succession.
func NewRunID() string {
	id := uuid.Must(uuid.NewV7())
	return strings.ToLower(runIDEncoding.EncodeToString(id[:]))
}

// RunIDTime extracts the creation time embedded in a NewRunID-minted run ID.
// Returns an error if id is not a 26-character base32hex-encoded UUIDv7.
func RunIDTime(id string) (time.Time, error) {
	if len(id) != 26 {
		return time.Time{}, fmt.Errorf("invalid run ID length: %d (want 26)", len(id))
	}
	decoded, err := runIDEncoding.DecodeString(strings.ToUpper(id))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run ID: %w", err)
	}
	ms := int64(decoded[0])<<40 | int64(decoded[1])<<32 | int64(decoded[2])<<24 |
		int64(decoded[3])<<16 | int64(decoded[4])<<8 | int64(decoded[5])
	return time.UnixMilli(ms), nil
}
