// Package chunk implements C5: grouping encoder Frames into gapless,
// wall-clock-aligned chunks, splitting only on frame boundaries so
// concatenated chunk payloads reproduce the unsplit stream exactly
// (invariant I3).
package chunk

import (
	"math"

	"momo-streamkeeper/internal/encode"
	"momo-streamkeeper/internal/ogg"
)

// Chunk is one finished, storable segment of audio.
type Chunk struct {
	BoundaryOffset        int64 // samples elapsed since the section started, at this chunk's first frame
	DurationSamples       int64
	TimestampMs           int64
	IsTimestampFromSource bool
	Payload               []byte
}

// Splitter accumulates encoder frames and emits a Chunk once the
// accumulated duration reaches the configured split interval, never
// splitting in the middle of a frame. It also carries the session-wide
// timestamp bookkeeping §4.5 assigns to the Chunker: session_start_ms plus
// samples_in_section let each chunk's timestamp_ms be derived by
// extrapolation instead of re-reading the wall clock.
type Splitter struct {
	sampleRate     int
	splitInterval  int64 // target chunk length, in samples; 0 disables splitting
	useOgg         bool
	oggSerial      uint32
	sessionStartMs int64

	offset            int64 // samples since section start
	chunkStart        int64
	chunkFrames       [][]byte
	chunkSamples      int64
	oggWriter         *ogg.Writer
	firstChunkEmitted bool
}

// NewSplitter builds a Splitter. useOgg wraps each chunk's Opus frames in
// an Ogg container so the chunk is independently playable, each chunk's
// stream taking the next serial number after oggSerial; AAC/WAV chunks are
// stored as raw concatenated frame bytes (ADTS frames carry their own
// headers; WAV chunks are headerless PCM). sessionStartMs is the HTTP Date
// origin for the section this Splitter is chunking.
func NewSplitter(sampleRate int, splitIntervalSeconds int, useOgg bool, oggSerial uint32, sessionStartMs int64) *Splitter {
	return &Splitter{
		sampleRate:     sampleRate,
		splitInterval:  int64(splitIntervalSeconds) * int64(sampleRate),
		useOgg:         useOgg,
		oggSerial:      oggSerial,
		sessionStartMs: sessionStartMs,
	}
}

// Push feeds newly encoded frames in and returns every chunk that became
// ready to store; a batch spanning several split intervals yields several
// chunks.
func (s *Splitter) Push(frames []encode.Frame) []Chunk {
	var out []Chunk
	for _, f := range frames {
		if s.useOgg {
			if s.oggWriter == nil {
				s.oggWriter = ogg.NewWriter(s.oggSerial, 1, uint32(s.sampleRate))
				s.oggSerial++
				s.chunkStart = s.offset
			}
			s.oggWriter.WritePacket(f.Data, f.SampleCount)
		} else {
			if len(s.chunkFrames) == 0 {
				s.chunkStart = s.offset
			}
			s.chunkFrames = append(s.chunkFrames, f.Data)
		}
		s.chunkSamples += int64(f.SampleCount)
		s.offset += int64(f.SampleCount)

		if s.splitInterval > 0 && s.chunkSamples >= s.splitInterval {
			out = append(out, s.flush())
		}
	}
	return out
}

// Finish flushes any partially filled chunk at stream end.
func (s *Splitter) Finish() *Chunk {
	if s.chunkSamples == 0 {
		return nil
	}
	c := s.flush()
	return &c
}

func (s *Splitter) flush() Chunk {
	var payload []byte
	if s.useOgg {
		payload = s.oggWriter.Finish()
		s.oggWriter = nil
	} else {
		for _, f := range s.chunkFrames {
			payload = append(payload, f...)
		}
		s.chunkFrames = nil
	}

	timestampMs, fromSource := s.chunkTimestamp()
	c := Chunk{
		BoundaryOffset:        s.chunkStart,
		DurationSamples:       s.chunkSamples,
		TimestampMs:           timestampMs,
		IsTimestampFromSource: fromSource,
		Payload:               payload,
	}
	s.chunkSamples = 0
	s.firstChunkEmitted = true
	return c
}

// chunkTimestamp implements §4.5 step 2's timestamp formula: the section's
// first chunk inherits session_start_ms verbatim (it came straight from the
// HTTP Date header); every later chunk's timestamp is extrapolated from the
// sample count accumulated before it began.
func (s *Splitter) chunkTimestamp() (int64, bool) {
	if !s.firstChunkEmitted {
		return s.sessionStartMs, true
	}
	offsetMs := int64(math.Round(1000 * float64(s.chunkStart) / float64(s.sampleRate)))
	return s.sessionStartMs + offsetMs, false
}
