package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-streamkeeper/internal/encode"
)

func TestSplitter_EmitsChunkOnceIntervalReached(t *testing.T) {
	// 1 second split interval at 48kHz, 960-sample frames -> 50 frames per chunk
	s := NewSplitter(48000, 1, false, 1, 1_700_000_000_000)

	var frames []encode.Frame
	for i := 0; i < 50; i++ {
		frames = append(frames, encode.Frame{Data: []byte{byte(i)}, SampleCount: 960})
	}

	chunks := s.Push(frames)

	require.Len(t, chunks, 1)
	assert.EqualValues(t, 48000, chunks[0].DurationSamples)
	assert.EqualValues(t, 0, chunks[0].BoundaryOffset)
	assert.EqualValues(t, 1_700_000_000_000, chunks[0].TimestampMs)
	assert.True(t, chunks[0].IsTimestampFromSource)
}

func TestSplitter_SecondChunkTimestampIsExtrapolatedNotFromSource(t *testing.T) {
	s := NewSplitter(48000, 1, false, 1, 1_700_000_000_000)

	var frames []encode.Frame
	for i := 0; i < 100; i++ { // two full seconds
		frames = append(frames, encode.Frame{Data: []byte{byte(i)}, SampleCount: 960})
	}

	chunks := s.Push(frames)

	require.Len(t, chunks, 2)
	assert.True(t, chunks[0].IsTimestampFromSource)
	assert.EqualValues(t, 1_700_000_000_000, chunks[0].TimestampMs)
	assert.False(t, chunks[1].IsTimestampFromSource)
	assert.EqualValues(t, 1_700_000_001_000, chunks[1].TimestampMs)
}

func TestSplitter_ZeroIntervalNeverSplits(t *testing.T) {
	s := NewSplitter(48000, 0, false, 1, 0)

	var frames []encode.Frame
	for i := 0; i < 500; i++ { // 10 seconds of frames
		frames = append(frames, encode.Frame{Data: []byte{byte(i % 256)}, SampleCount: 960})
	}

	chunks := s.Push(frames)
	assert.Empty(t, chunks)

	final := s.Finish()
	require.NotNil(t, final)
	assert.EqualValues(t, 500*960, final.DurationSamples)
}

func TestSplitter_NeverSplitsMidFrame(t *testing.T) {
	s := NewSplitter(48000, 1, false, 1, 0)

	// 49 frames: one short of a full second, should emit nothing yet
	var frames []encode.Frame
	for i := 0; i < 49; i++ {
		frames = append(frames, encode.Frame{Data: []byte{byte(i)}, SampleCount: 960})
	}
	chunks := s.Push(frames)
	assert.Empty(t, chunks)

	// next frame pushes it over the 48000-sample boundary
	chunks = s.Push([]encode.Frame{{Data: []byte{1}, SampleCount: 960}})
	require.Len(t, chunks, 1)
	assert.EqualValues(t, 48000, chunks[0].DurationSamples)
}

func TestSplitter_FinishFlushesPartialChunk(t *testing.T) {
	s := NewSplitter(48000, 10, false, 1, 0)

	s.Push([]encode.Frame{{Data: []byte{0xAA}, SampleCount: 960}})

	final := s.Finish()

	require.NotNil(t, final)
	assert.EqualValues(t, 960, final.DurationSamples)
}

func TestSplitter_ConcatenatedChunksCoverWholeStreamGaplessly(t *testing.T) {
	s := NewSplitter(48000, 1, false, 1, 0)

	var allFrames []encode.Frame
	for i := 0; i < 150; i++ { // 3 seconds of frames
		allFrames = append(allFrames, encode.Frame{Data: []byte{byte(i % 256)}, SampleCount: 960})
	}

	var totalSamples int64
	chunks := s.Push(allFrames)
	for _, c := range chunks {
		totalSamples += c.DurationSamples
	}
	if final := s.Finish(); final != nil {
		totalSamples += final.DurationSamples
	}

	assert.EqualValues(t, 150*960, totalSamples)
}

func TestSplitter_OggModeWrapsEachChunkInAnIndependentStream(t *testing.T) {
	s := NewSplitter(48000, 1, true, 7, 0)

	var frames []encode.Frame
	for i := 0; i < 50; i++ {
		frames = append(frames, encode.Frame{Data: []byte{byte(i)}, SampleCount: 960})
	}

	chunks := s.Push(frames)

	require.Len(t, chunks, 1)
	assert.Equal(t, "OggS", string(chunks[0].Payload[:4]))
}
