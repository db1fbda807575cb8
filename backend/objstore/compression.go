package objstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gridstore/internal/hash"
)

// Compression selects the codec applied to stored chunks.
type Compression uint8

const (
	// CompressionNone stores chunks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, good for cold data).
	CompressionZSTD Compression = 2
)

// String returns the name recorded in the store manifest.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name produced by String back to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, fmt.Errorf("objstore: unknown compression %q", name)
}

// ErrCorruptChunk is returned when a stored chunk fails its checksum or
// cannot be decoded.
var ErrCorruptChunk = errors.New("objstore: corrupt chunk")

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

// Frame layout:
//
//	[crc32c uint32][raw size uint32][packed size uint32][codec uint8][data...]
//
// A packed size of 0 means the data is stored raw. The checksum covers the
// raw bytes.
const frameHeaderSize = 13

// encodeChunk frames a chunk, compressing it unless that saves less than
// ten percent.
func encodeChunk(raw []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("objstore: unknown compression %d", c)
	}

	stored := len(packed) > 0 && float64(len(packed)) <= float64(len(raw))*0.9
	body := raw
	if stored {
		body = packed
	}

	out := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], hash.CRC32C(raw))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(raw)))
	if stored {
		binary.LittleEndian.PutUint32(out[8:], uint32(len(packed)))
		out[12] = byte(c)
	}
	copy(out[frameHeaderSize:], body)
	return out, nil
}

// decodeChunk reverses encodeChunk. The codec is read from the frame, so
// chunks written under an older setting stay readable.
func decodeChunk(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrCorruptChunk, len(frame))
	}
	sum := binary.LittleEndian.Uint32(frame[0:])
	rawSize := binary.LittleEndian.Uint32(frame[4:])
	packedSize := binary.LittleEndian.Uint32(frame[8:])
	body := frame[frameHeaderSize:]

	var raw []byte
	if packedSize == 0 {
		if uint32(len(body)) < rawSize {
			return nil, fmt.Errorf("%w: truncated", ErrCorruptChunk)
		}
		raw = body[:rawSize]
	} else {
		if uint32(len(body)) < packedSize {
			return nil, fmt.Errorf("%w: truncated", ErrCorruptChunk)
		}
		body = body[:packedSize]
		raw = make([]byte, rawSize)

		switch Compression(frame[12]) {
		case CompressionLZ4:
			n, err := lz4.UncompressBlock(body, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, err)
			}
			raw = raw[:n]
		case CompressionZSTD:
			dec := getZstdDecoder()
			out, err := dec.DecodeAll(body, raw[:0])
			zstdDecoderPool.Put(dec)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, err)
			}
			raw = out
		default:
			return nil, fmt.Errorf("%w: codec %d", ErrCorruptChunk, frame[12])
		}
		if uint32(len(raw)) != rawSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorruptChunk)
		}
	}

	if hash.CRC32C(raw) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptChunk)
	}
	return raw, nil
}
