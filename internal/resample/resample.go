// Package resample implements C3: stereo-to-mono downmixing and sample
// rate conversion via a polyphase windowed-sinc FIR, carrying filter state
// across Push calls so a stream split into arbitrary-sized PCM buffers
// resamples identically to one fed in a single shot.
package resample

import "math"

// Mixer downmixes interleaved stereo PCM16 to mono by averaging channels,
// matching the original recorder's simple per-frame average.
type Mixer struct {
	Channels int
}

// Downmix returns one sample per frame, averaging Channels interleaved
// samples per frame. If Channels is 1 the input is returned unchanged.
func (m Mixer) Downmix(in []int16) []int16 {
	if m.Channels <= 1 {
		return in
	}
	frames := len(in) / m.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < m.Channels; c++ {
			sum += int32(in[i*m.Channels+c])
		}
		out[i] = int16(sum / int32(m.Channels))
	}
	return out
}

// Kernel is the pluggable resampling algorithm a Resampler drives. Feed
// consumes interleaved mono PCM16 and returns however many output samples
// are ready; Flush drains whatever tail remains buffered at session end.
type Kernel interface {
	Feed(in []int16) []int16
	Flush() []int16
}

// Resampler converts PCM16 from SrcRate to DstRate through a Kernel,
// defaulting to the polyphase FIR kernel below. It keeps the kernel's state
// alive across calls so Push can be called repeatedly on a live stream
// without discontinuities at buffer boundaries.
type Resampler struct {
	SrcRate int
	DstRate int

	kernel Kernel
}

// NewResampler returns a Resampler converting srcRate to dstRate using the
// fixed-length polyphase FIR kernel.
func NewResampler(srcRate, dstRate int) *Resampler {
	return &Resampler{SrcRate: srcRate, DstRate: dstRate, kernel: NewFIRKernel(srcRate, dstRate)}
}

// Push resamples in, using and updating the kernel's persistent state.
func (r *Resampler) Push(in []int16) []int16 { return r.kernel.Feed(in) }

// Flush drains the kernel's buffered tail, used once at stream end.
func (r *Resampler) Flush() []int16 { return r.kernel.Flush() }

const (
	firTaps   = 8  // fixed filter length per phase, per §4.3's "fixed filter length"
	firPhases = 32 // fractional-delay resolution of the polyphase bank
	firHalf   = firTaps / 2
)

// FIRKernel is a polyphase windowed-sinc low-pass FIR resampler: a bank of
// firPhases phase-shifted filters, one selected per output sample by the
// fractional part of its source-sample position, the same streaming design
// birdnet-go's StreamingResampler uses to keep phase continuous across
// arbitrarily split Process calls.
type FIRKernel struct {
	srcRate, dstRate int
	phaseFilters     [][]float64 // [phase][tap], unity DC gain
	history          []int16     // trailing 2*firHalf samples of the previous Feed call
	pos              float64     // fractional read position into history+input
}

// NewFIRKernel builds a kernel for srcRate -> dstRate. When the rates match
// Feed is an identity passthrough and no filter bank is built.
func NewFIRKernel(srcRate, dstRate int) *FIRKernel {
	k := &FIRKernel{
		srcRate: srcRate,
		dstRate: dstRate,
		history: make([]int16, 2*firHalf),
		pos:     float64(2 * firHalf),
	}
	if srcRate > 0 && dstRate > 0 && srcRate != dstRate {
		k.phaseFilters = designPolyphaseFilters(srcRate, dstRate)
	}
	return k
}

// Feed filters and resamples in, prepending the carried-over history so the
// FIR's taps see continuous context across the chunk boundary.
func (k *FIRKernel) Feed(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	if k.srcRate <= 0 || k.dstRate <= 0 || k.srcRate == k.dstRate {
		return append([]int16(nil), in...)
	}

	work := make([]int16, len(k.history)+len(in))
	copy(work, k.history)
	copy(work[len(k.history):], in)

	step := float64(k.srcRate) / float64(k.dstRate)
	var out []int16
	// Only positions whose whole tap span lies inside work are computed; the
	// rest wait for the samples of the next Feed call.
	for k.pos < float64(len(work)-firHalf+1) {
		out = append(out, k.sampleAt(work, k.pos))
		k.pos += step
	}
	// The new history is the last 2*firHalf samples of work, so rebase pos
	// onto the buffer the next call builds from it.
	keep := len(k.history)
	k.pos -= float64(len(work) - keep)
	copy(k.history, work[len(work)-keep:])
	return out
}

// Flush pushes the filter's trailing history through with zero padding,
// draining whatever output the tail of the stream still owes.
func (k *FIRKernel) Flush() []int16 {
	if k.srcRate <= 0 || k.dstRate <= 0 || k.srcRate == k.dstRate {
		return nil
	}
	return k.Feed(make([]int16, firHalf))
}

func (k *FIRKernel) sampleAt(buf []int16, pos float64) int16 {
	center := int(pos)
	frac := pos - float64(center)
	phase := int(frac * firPhases)
	if phase >= firPhases {
		phase = firPhases - 1
	}
	taps := k.phaseFilters[phase]

	var sum float64
	for j, coef := range taps {
		idx := center - firHalf + j
		if idx < 0 || idx >= len(buf) {
			continue
		}
		sum += float64(buf[idx]) * coef
	}
	switch {
	case sum > 32767:
		sum = 32767
	case sum < -32768:
		sum = -32768
	}
	return int16(sum)
}

// designPolyphaseFilters builds firPhases Kaiser-windowed sinc low-pass
// filters, one per fractional delay, cut off at the lower of the two rates'
// Nyquist frequency so neither upsampling images nor downsampling aliasing
// survive.
func designPolyphaseFilters(srcRate, dstRate int) [][]float64 {
	limitingRate := srcRate
	if dstRate < srcRate {
		limitingRate = dstRate
	}
	cutoff := float64(limitingRate) / 2 / math.Max(float64(srcRate), float64(dstRate))

	banks := make([][]float64, firPhases)
	for p := 0; p < firPhases; p++ {
		offset := float64(p) / float64(firPhases)
		taps := make([]float64, firTaps)
		var sum float64
		for j := 0; j < firTaps; j++ {
			t := float64(j-firHalf) - offset
			var v float64
			if t == 0 {
				v = 2 * cutoff
			} else {
				v = math.Sin(2*math.Pi*cutoff*t) / (math.Pi * t)
			}
			v *= kaiserWindow(float64(j)/float64(firTaps-1), 8.0)
			taps[j] = v
			sum += v
		}
		if sum != 0 {
			for j := range taps {
				taps[j] /= sum
			}
		}
		banks[p] = taps
	}
	return banks
}

// kaiserWindow evaluates a Kaiser window at x in [0,1] with shape beta.
func kaiserWindow(x, beta float64) float64 {
	u := 2*x - 1
	if u < -1 || u > 1 {
		return 0
	}
	return bessel0(beta*math.Sqrt(1-u*u)) / bessel0(beta)
}

// bessel0 approximates the modified Bessel function I0 via its series
// expansion, as used to normalize the Kaiser window above.
func bessel0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2
	for k := 1; k < 15; k++ {
		term *= (half * half) / (float64(k) * float64(k))
		sum += term
		if term < 1e-12 {
			break
		}
	}
	return sum
}
