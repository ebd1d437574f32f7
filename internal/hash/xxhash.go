package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Int64 returns the xxHash64 digest of the little-endian encoding of v.
func Int64(v int64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return xxhash.Sum64(b[:])
}
