// Package decode implements C2: turning compressed MP3/AAC-ADTS bytes from
// C1 into raw PCM, by shelling out to ffmpeg the same way the teacher's
// audio package drove it for HLS transcoding, just decode-only here.
package decode

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
)

// Decoder wraps an ffmpeg subprocess decoding a compressed audio stream to
// raw interleaved little-endian PCM16 on its stdout.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// Start launches ffmpeg reading inputFormat-encoded bytes from r and
// produces PCM16 with sourceChannels channels on Stdout() (sourceChannels of
// 0 keeps the stream's own channel count). No output rate is requested, so
// ffmpeg keeps the stream's native rate; the resampler downstream handles
// any rate actually produced.
func Start(r io.Reader, inputFormat string, sourceChannels int) (*Decoder, error) {
	args := []string{
		"-loglevel", "error",
		"-f", inputFormat,
		"-i", "pipe:0",
		"-vn", "-map", "0:a:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
	}
	if sourceChannels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", sourceChannels))
	}
	args = append(args, "pipe:1")

	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdin = r

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder: %w", err)
	}

	d := &Decoder{cmd: cmd, stdout: stdout, stderr: stderr}
	go d.drainStderr()
	return d, nil
}

func (d *Decoder) drainStderr() {
	scanner := bufio.NewScanner(d.stderr)
	for scanner.Scan() {
		log.Printf("decode: ffmpeg: %s", scanner.Text())
	}
}

// Stdout is the raw PCM16 output stream. Read() returns io.EOF once ffmpeg
// finishes decoding the whole input.
func (d *Decoder) Stdout() io.Reader {
	return d.stdout
}

// Wait blocks until ffmpeg exits and returns its error, if any.
func (d *Decoder) Wait() error {
	return d.cmd.Wait()
}

// ReadInt16 reads up to len(buf) PCM16 samples (interleaved across
// channels) from the decoder's stdout, converting from little-endian bytes.
// It fills buf completely unless the stream ends first, in which case it
// returns the whole samples read so far together with io.EOF.
func ReadInt16(r io.Reader, buf []int16) (int, error) {
	raw := make([]byte, len(buf)*2)
	n, err := io.ReadFull(r, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return samples, err
}
