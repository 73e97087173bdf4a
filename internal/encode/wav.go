package encode

import (
	"encoding/binary"
)

const wavFrameSamples = 1024 // chunker still splits WAV on this grouping, no codec constraint requires it

// WAVEncoder "encodes" PCM16 by emitting raw little-endian samples with no
// per-frame structure, used for archival-quality recording where no lossy
// codec is desired. Stored payloads carry no header; §4.5 assigns header
// synthesis to export/playlist time, once a section's full byte count is
// known.
type WAVEncoder struct {
	rate   int
	buffer []int16
}

func NewWAVEncoder(sampleRate int) *WAVEncoder {
	return &WAVEncoder{rate: sampleRate}
}

func (w *WAVEncoder) SampleRate() int   { return w.rate }
func (w *WAVEncoder) FrameSamples() int { return wavFrameSamples }

func (w *WAVEncoder) Push(pcm []int16) []Frame {
	w.buffer = append(w.buffer, pcm...)
	var frames []Frame
	for len(w.buffer) >= wavFrameSamples {
		frames = append(frames, w.emit(w.buffer[:wavFrameSamples]))
		w.buffer = w.buffer[wavFrameSamples:]
	}
	return frames
}

func (w *WAVEncoder) Finish() []Frame {
	if len(w.buffer) == 0 {
		return nil
	}
	frame := w.emit(w.buffer)
	w.buffer = nil
	return []Frame{frame}
}

func (w *WAVEncoder) emit(pcm []int16) Frame {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return Frame{Data: data, SampleCount: len(pcm)}
}

// WAVFile synthesizes a complete, correctly-sized RIFF/WAVE file from raw
// interleaved mono PCM16 bytes, for use at export/playlist time once a
// section's whole payload (and so its true byte count) is known.
func WAVFile(sampleRate int, pcm []byte) []byte {
	header := wavHeader(sampleRate)
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))
	return append(header, pcm...)
}

// wavHeader builds a 44-byte RIFF header with placeholder sizes; WAVFile
// patches the riff/data size fields once the payload length is known.
func wavHeader(sampleRate int) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 0) // patched by WAVFile once the payload length is known
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], 1) // mono
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(h[32:34], 2)
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], 0)
	return h
}
