// Package encode implements C4: turning resampled mono PCM16 into
// frame-aligned compressed audio, one encoder per supported AudioFormat.
package encode

// Frame is one codec frame ready to be stored or handed to C5's chunker.
type Frame struct {
	Data        []byte
	SampleCount int
}

// Encoder turns PCM16 into Frames. Push may buffer PCM internally and
// return zero or more complete frames; Finish flushes whatever remains
// (padding the final partial frame where the codec requires it).
type Encoder interface {
	Push(pcm []int16) []Frame
	Finish() []Frame
	SampleRate() int
	FrameSamples() int
}
