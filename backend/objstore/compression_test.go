package objstore

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFrameRoundTrip(t *testing.T) {
	smooth := bytes.Repeat([]byte{1, 2, 3, 4, 0, 0, 0, 0}, 512)
	noise := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(noise)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			for _, raw := range [][]byte{smooth, noise, {}, {42}} {
				frame, err := encodeChunk(raw, c)
				require.NoError(t, err)

				got, err := decodeChunk(frame)
				require.NoError(t, err)
				assert.Equal(t, len(raw), len(got))
				assert.True(t, bytes.Equal(raw, got))
			}
		})
	}
}

func TestChunkFrameStoresIncompressibleRaw(t *testing.T) {
	noise := make([]byte, 4096)
	rand.New(rand.NewSource(2)).Read(noise)

	frame, err := encodeChunk(noise, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(frame[8:]), "packed size")
	assert.Len(t, frame, frameHeaderSize+len(noise))

	smooth := make([]byte, 4096)
	frame, err = encodeChunk(smooth, CompressionLZ4)
	require.NoError(t, err)
	assert.Less(t, len(frame), len(smooth)/2)
	assert.Equal(t, byte(CompressionLZ4), frame[12])
}

func TestChunkFrameCorruption(t *testing.T) {
	raw := bytes.Repeat([]byte("gridstore"), 100)
	frame, err := encodeChunk(raw, CompressionLZ4)
	require.NoError(t, err)

	_, err = decodeChunk(frame[:5])
	assert.ErrorIs(t, err, ErrCorruptChunk)

	_, err = decodeChunk(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrCorruptChunk)

	flipped := bytes.Clone(frame)
	flipped[0] ^= 0xff
	_, err = decodeChunk(flipped)
	assert.ErrorIs(t, err, ErrCorruptChunk)

	unknown := bytes.Clone(frame)
	unknown[12] = 9
	_, err = decodeChunk(unknown)
	assert.ErrorIs(t, err, ErrCorruptChunk)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, "compression(7)", Compression(7).String())
}
