package array

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hupe1980/arraystream/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the block compression of an array's fragments.
type Compression string

const (
	// CompressionZSTD favors ratio. It is the default.
	CompressionZSTD Compression = "zstd"
	// CompressionLZ4 favors decode speed.
	CompressionLZ4 Compression = "lz4"
	// CompressionNone stores blocks raw.
	CompressionNone Compression = "none"
)

type blockCodec uint8

const (
	codecNone blockCodec = 0
	codecLZ4  blockCodec = 1
	codecZSTD blockCodec = 2
)

func (c Compression) codec() (blockCodec, error) {
	switch c {
	case "", CompressionZSTD:
		return codecZSTD, nil
	case CompressionLZ4:
		return codecLZ4, nil
	case CompressionNone:
		return codecNone, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidSchema, c)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block format: [crc32c u32][uncompressed u32][compressed u32][data].
// compressed == 0 means data is raw. The checksum covers data as stored.
const blockHeaderSize = 12

// encodeBlock compresses data with c, keeping it raw when compression
// does not reach a 0.9 ratio.
func encodeBlock(data []byte, c blockCodec) ([]byte, error) {
	var compressed []byte

	switch c {
	case codecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case codecZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	payload, stored := data, uint32(0)
	if len(compressed) > 0 && float64(len(compressed)) <= float64(len(data))*0.9 {
		payload, stored = compressed, uint32(len(compressed))
	}

	out := make([]byte, blockHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[8:], stored)
	copy(out[blockHeaderSize:], payload)
	return out, nil
}

// decodeBlock verifies and decompresses a block. The result never aliases
// block.
func decodeBlock(block []byte, c blockCodec) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block shorter than header", ErrCorrupt)
	}

	sum := binary.LittleEndian.Uint32(block[0:])
	rawSize := binary.LittleEndian.Uint32(block[4:])
	storedSize := binary.LittleEndian.Uint32(block[8:])

	n := rawSize
	if storedSize != 0 {
		n = storedSize
	}
	if uint64(len(block)) < blockHeaderSize+uint64(n) {
		return nil, fmt.Errorf("%w: truncated block", ErrCorrupt)
	}
	payload := block[blockHeaderSize : blockHeaderSize+n]
	if hash.CRC32C(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	out := make([]byte, rawSize)
	if storedSize == 0 {
		copy(out, payload)
		return out, nil
	}

	switch c {
	case codecLZ4:
		m, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(m) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
	case codecZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		out = decoded
	default:
		return nil, fmt.Errorf("%w: compressed block with codec %d", ErrCorrupt, c)
	}
	return out, nil
}
