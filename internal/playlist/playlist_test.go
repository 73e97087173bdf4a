package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-streamkeeper/internal/ogg"
	"momo-streamkeeper/internal/store"
)

func adtsFrame(payload []byte) []byte {
	frameLen := 7 + len(payload)
	header := []byte{
		0xFF, 0xF1, // sync + MPEG-4, no CRC
		0x50,                         // profile AAC-LC, sampling freq index, channel config high bit
		byte(frameLen >> 11),         // part of frame length
		byte((frameLen >> 3) & 0xFF), //
		byte((frameLen&0x07)<<5 | 0x1F),
		0xFC,
	}
	header[3] &= 0x03 // keep only the length bits this test cares about
	return append(header, payload...)
}

func TestSplitADTS_RecoversEachFrame(t *testing.T) {
	payload := append(adtsFrame([]byte{1, 2, 3}), adtsFrame([]byte{4, 5})...)

	frames, err := splitADTS(payload)

	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{1, 2, 3}, frames[0][7:])
	assert.Equal(t, []byte{4, 5}, frames[1][7:])
}

func TestSplitOgg_RecoversPacketsAndSkipsHeaderPages(t *testing.T) {
	w := ogg.NewWriter(1, 1, 48000)
	w.WritePacket([]byte{0xAA, 0xBB}, 960)
	w.WritePacket([]byte{0xCC}, 960)
	data := w.Finish()

	frames, err := splitOgg(data)

	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{0xAA, 0xBB}, frames[0])
	assert.Equal(t, []byte{0xCC}, frames[1])
}

func TestBuildM3U8_OneExtinfPerChunk(t *testing.T) {
	chunks := []store.Chunk{
		{ID: 1, DurationSamples: 48000},
		{ID: 2, DurationSamples: 24000},
	}

	m3u8 := BuildM3U8("testshow", 5, 48000, chunks)

	assert.Contains(t, m3u8, "#EXTINF:1.000,")
	assert.Contains(t, m3u8, "#EXTINF:0.500,")
	assert.Contains(t, m3u8, "/sections/5/chunks/1.m4s")
	assert.Contains(t, m3u8, "/sections/5/chunks/2.m4s")
}
