package array

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fragment header: [magic u32][version u16][codec u8][reserved u8]
// [rows u64][columns u32], then one [offset u64][length u64] entry per
// column, then the column blocks.
const (
	fragmentMagic      uint32 = 0x52465341 // "ASFR"
	fragmentVersion    uint16 = 1
	fragmentHeaderSize        = 20
	directoryEntrySize        = 16
)

// FragmentInfo describes one committed fragment.
type FragmentInfo struct {
	Name string `json:"name"`
	Rows uint64 `json:"rows"`
	Size int64  `json:"size"`
	// Bounds holds the inclusive [min, max] of each dimension, in schema
	// order.
	Bounds    [][2]int64 `json:"bounds"`
	Timestamp int64      `json:"timestamp"`
}

func newFragmentName(now time.Time) string {
	return fmt.Sprintf("%020d_%s.frag", now.UnixNano(), uuid.NewString())
}

type blockRef struct {
	off, length uint64
}

type fragmentHeader struct {
	codec  blockCodec
	rows   uint64
	blocks []blockRef
}

func headerSize(columns int) int {
	return fragmentHeaderSize + columns*directoryEntrySize
}

// encodeFragment serializes one encoded block per column.
func encodeFragment(rows uint64, c blockCodec, blocks [][]byte) []byte {
	size := headerSize(len(blocks))
	for _, b := range blocks {
		size += len(b)
	}

	out := make([]byte, headerSize(len(blocks)), size)
	binary.LittleEndian.PutUint32(out[0:], fragmentMagic)
	binary.LittleEndian.PutUint16(out[4:], fragmentVersion)
	out[6] = byte(c)
	binary.LittleEndian.PutUint64(out[8:], rows)
	binary.LittleEndian.PutUint32(out[16:], uint32(len(blocks)))

	off := uint64(len(out))
	for i, b := range blocks {
		entry := out[fragmentHeaderSize+i*directoryEntrySize:]
		binary.LittleEndian.PutUint64(entry[0:], off)
		binary.LittleEndian.PutUint64(entry[8:], uint64(len(b)))
		off += uint64(len(b))
	}
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// decodeHeader parses the header and directory of a fragment with the
// given column count.
func decodeHeader(data []byte, columns int, size int64) (fragmentHeader, error) {
	if len(data) < headerSize(columns) {
		return fragmentHeader{}, fmt.Errorf("%w: fragment header truncated", ErrCorrupt)
	}
	if binary.LittleEndian.Uint32(data[0:]) != fragmentMagic {
		return fragmentHeader{}, fmt.Errorf("%w: bad fragment magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != fragmentVersion {
		return fragmentHeader{}, fmt.Errorf("%w: unsupported fragment version %d", ErrCorrupt, v)
	}
	if n := binary.LittleEndian.Uint32(data[16:]); int(n) != columns {
		return fragmentHeader{}, fmt.Errorf("%w: fragment has %d columns, schema has %d", ErrCorrupt, n, columns)
	}

	h := fragmentHeader{
		codec:  blockCodec(data[6]),
		rows:   binary.LittleEndian.Uint64(data[8:]),
		blocks: make([]blockRef, columns),
	}
	for i := range h.blocks {
		entry := data[fragmentHeaderSize+i*directoryEntrySize:]
		ref := blockRef{
			off:    binary.LittleEndian.Uint64(entry[0:]),
			length: binary.LittleEndian.Uint64(entry[8:]),
		}
		if ref.off+ref.length > uint64(size) || ref.off+ref.length < ref.off {
			return fragmentHeader{}, fmt.Errorf("%w: column %d block out of range", ErrCorrupt, i)
		}
		h.blocks[i] = ref
	}
	return h, nil
}
