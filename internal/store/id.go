package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns an opaque, lexicographically sortable identifier: an 8-byte
// big-endian millisecond timestamp prefix (so ids sort by creation order)
// followed by a random uuid4 suffix for uniqueness, both hex-encoded.
func NewID() string {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UTC().UnixMilli()))
	return fmt.Sprintf("%x-%s", ts[:], uuid.New().String())
}
