package encode

import (
	"gopkg.in/hraban/opus.v2"
)

const (
	opusSampleRate   = 48000
	opusFrameSamples = 960 // 20ms at 48kHz
	opusMaxPacket    = 4000
)

// OpusEncoder wraps gopkg.in/hraban/opus.v2's CGo binding, buffering PCM
// until a full 20ms frame is available since the Opus encoder only accepts
// fixed frame sizes.
type OpusEncoder struct {
	enc    *opus.Encoder
	buffer []int16
}

// NewOpusEncoder creates a mono Opus encoder at the codec's native 48kHz.
func NewOpusEncoder(bitrateBps int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(opusSampleRate, 1, opus.AppAudio)
	if err != nil {
		return nil, err
	}
	if bitrateBps > 0 {
		if err := enc.SetBitrate(bitrateBps); err != nil {
			return nil, err
		}
	}
	return &OpusEncoder{enc: enc}, nil
}

func (o *OpusEncoder) SampleRate() int    { return opusSampleRate }
func (o *OpusEncoder) FrameSamples() int  { return opusFrameSamples }

func (o *OpusEncoder) Push(pcm []int16) []Frame {
	o.buffer = append(o.buffer, pcm...)
	var frames []Frame
	for len(o.buffer) >= opusFrameSamples {
		frame := o.encodeFrame(o.buffer[:opusFrameSamples])
		frames = append(frames, frame)
		o.buffer = o.buffer[opusFrameSamples:]
	}
	return frames
}

// Finish pads any trailing partial frame with silence and encodes it, the
// same way the codec's encoder delay is absorbed on an unsplit stream.
func (o *OpusEncoder) Finish() []Frame {
	if len(o.buffer) == 0 {
		return nil
	}
	padded := make([]int16, opusFrameSamples)
	copy(padded, o.buffer)
	frame := o.encodeFrame(padded)
	frame.SampleCount = len(o.buffer)
	o.buffer = nil
	return []Frame{frame}
}

func (o *OpusEncoder) encodeFrame(pcm []int16) Frame {
	out := make([]byte, opusMaxPacket)
	n, err := o.enc.Encode(pcm, out)
	if err != nil {
		return Frame{}
	}
	return Frame{Data: out[:n], SampleCount: len(pcm)}
}
