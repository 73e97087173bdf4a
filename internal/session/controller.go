// Package session implements C7: the state machine that drives stream
// capture for one show through Idle -> Connecting -> Streaming ->
// Backoff/Closing -> Aborted, wiring C1 through C6 together.
package session

import (
	"bytes"
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"momo-streamkeeper/internal/chunk"
	"momo-streamkeeper/internal/config"
	"momo-streamkeeper/internal/decode"
	"momo-streamkeeper/internal/encode"
	"momo-streamkeeper/internal/metrics"
	"momo-streamkeeper/internal/resample"
	"momo-streamkeeper/internal/retry"
	"momo-streamkeeper/internal/store"
	"momo-streamkeeper/internal/streamsource"
)

// probeHeadBytes is how much of the stream's leading bytes get buffered and
// handed to ffprobe before decoding starts; enough for ffprobe to find the
// first audio frame's header on a typical MP3/AAC-ADTS stream.
const probeHeadBytes = 65536

// fallbackSourceRate is used when ffprobe can't determine the stream's
// actual sample rate (e.g. ffprobe missing or a malformed lead-in), so the
// resampler still has a sane ratio to target instead of refusing to run.
const fallbackSourceRate = 44100

// State is one point in the Session Controller's lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateBackoff    State = "backoff"
	StateClosing    State = "closing"
	StateAborted    State = "aborted"
)

// maxConsecutiveFailures aborts a show after this many failed connect
// attempts in a row, so a permanently dead stream URL doesn't retry forever.
const maxConsecutiveFailures = 20

// Controller drives one show's recording lifecycle.
type Controller struct {
	show  config.ShowConfig
	store *store.Store
	clock Clock

	state               State
	backoff             *retry.Backoff
	consecutiveFailures int
}

// New builds a Controller for one show, writing chunks into db.
func New(show config.ShowConfig, db *store.Store, clock Clock) *Controller {
	if clock == nil {
		clock = RealClock{}
	}
	return &Controller{
		show:    show,
		store:   db,
		clock:   clock,
		state:   StateIdle,
		backoff: retry.NewBackoff(),
	}
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State { return c.state }

func (c *Controller) setState(s State) {
	c.state = s
	metrics.SessionState.WithLabelValues(c.show.Name, string(s)).Set(1)
}

// Run blocks until ctx is cancelled, entering the scheduled recording
// window when it opens, reconnecting through transient failures, and
// closing the current section cleanly when the window ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	c.setState(StateIdle)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if c.state == StateAborted {
			return nil
		}

		inWindow := IsTimeMatch(c.show.Schedule.RecordStart, c.show.Schedule.RecordEnd, c.clock.Now().Format("15:04"))
		if !inWindow {
			continue
		}

		if err := c.recordSession(ctx); err != nil {
			log.Printf("🔴 %s: session ended: %v", c.show.Name, err)
		}
	}
}

// recordSession runs one full Connecting->Streaming->Closing cycle,
// returning when the stream drops, the recording window closes, or ctx is
// cancelled.
func (c *Controller) recordSession(ctx context.Context) error {
	c.setState(StateConnecting)

	src, err := streamsource.Connect(ctx, c.show.URL)
	if err != nil {
		metrics.StreamReconnects.WithLabelValues(c.show.Name).Inc()
		c.consecutiveFailures++
		if c.consecutiveFailures >= maxConsecutiveFailures {
			c.setState(StateAborted)
			return err
		}
		return c.handleConnectFailure(ctx, err)
	}
	c.consecutiveFailures = 0
	c.backoff.Reset()
	defer src.Close()

	// Section.id is the microsecond wall clock at creation, a sort key kept
	// deliberately distinct from start_timestamp_ms (the HTTP Date origin).
	sectionID := c.clock.Now().UnixMicro()
	sec, err := c.store.OpenSection(sectionID, c.show.Name, src.WallOrigin.UnixMilli())
	if err != nil {
		return err
	}

	c.setState(StateStreaming)
	traceID := uuid.New().String()
	log.Printf("🟢 %s: streaming started (section %d, trace %s)", c.show.Name, sec.ID, traceID)

	err = c.pumpPipeline(ctx, src, sec)

	c.setState(StateClosing)
	if cerr := c.store.CloseSection(sec.ID, c.clock.Now().UnixMilli()); cerr != nil {
		log.Printf("⚠️  %s: close section %d: %v", c.show.Name, sec.ID, cerr)
	}
	c.setState(StateIdle)
	return err
}

func (c *Controller) handleConnectFailure(ctx context.Context, connErr error) error {
	c.setState(StateBackoff)
	if c.backoff == nil {
		c.backoff = retry.NewBackoff()
	}
	delay := c.backoff.Next()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return connErr
}

// pumpPipeline drives decoded/resampled/encoded audio from src into stored
// chunks until the stream ends or ctx is cancelled.
func (c *Controller) pumpPipeline(ctx context.Context, src *streamsource.Source, sec *store.Section) error {
	inputFormat := inputFormatFor(src.ContentType)

	reader, sourceRate, sourceChannels := c.probeSource(src, inputFormat)

	dec, err := decode.Start(reader, inputFormat, sourceChannels)
	if err != nil {
		return err
	}
	defer dec.Wait()

	enc, primingSamples, useOgg, err := buildEncoder(c.show, sourceRate)
	if err != nil {
		return err
	}

	if err := c.store.InitShowFull(c.show.Name, string(c.show.AudioFormat), enc.SampleRate(), 1, c.show.BitrateKbps, c.show.SplitInterval, primingSamples, c.show.RetentionHours); err != nil {
		log.Printf("⚠️  %s: init metadata: %v", c.show.Name, err)
	}

	mixer := resample.Mixer{Channels: sourceChannels}
	resampler := resample.NewResampler(sourceRate, enc.SampleRate())
	splitter := chunk.NewSplitter(enc.SampleRate(), c.show.SplitInterval, useOgg, uint32(sec.ID), sec.StartTimestampMs)

	pcmBuf := make([]int16, 4096)
	for {
		select {
		case <-ctx.Done():
			c.flushFinal(enc, resampler, splitter, sec)
			return ctx.Err()
		default:
		}
		if !IsTimeMatch(c.show.Schedule.RecordStart, c.show.Schedule.RecordEnd, c.clock.Now().Format("15:04")) {
			c.flushFinal(enc, resampler, splitter, sec)
			return nil
		}

		n, err := decode.ReadInt16(dec.Stdout(), pcmBuf)
		if n > 0 {
			mono := mixer.Downmix(pcmBuf[:n])
			resampled := resampler.Push(mono)
			if len(resampled) > 0 {
				frames := enc.Push(resampled)
				for _, ch := range splitter.Push(frames) {
					c.storeChunk(sec.ID, ch)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				c.flushFinal(enc, resampler, splitter, sec)
				return nil
			}
			c.flushFinal(enc, resampler, splitter, sec)
			return err
		}
	}
}

func (c *Controller) flushFinal(enc encode.Encoder, resampler *resample.Resampler, splitter *chunk.Splitter, sec *store.Section) {
	if tail := resampler.Flush(); len(tail) > 0 {
		for _, ch := range splitter.Push(enc.Push(tail)) {
			c.storeChunk(sec.ID, ch)
		}
	}
	for _, ch := range splitter.Push(enc.Finish()) {
		c.storeChunk(sec.ID, ch)
	}
	if final := splitter.Finish(); final != nil {
		c.storeChunk(sec.ID, *final)
	}
}

func (c *Controller) storeChunk(sectionID int64, ch chunk.Chunk) {
	if _, err := c.store.AppendChunk(sectionID, ch.BoundaryOffset, ch.DurationSamples, ch.TimestampMs, ch.IsTimestampFromSource, ch.Payload); err != nil {
		metrics.ChunksWritten.WithLabelValues(c.show.Name, "error").Inc()
		log.Printf("⚠️  %s: append chunk: %v", c.show.Name, err)
		return
	}
	metrics.ChunksWritten.WithLabelValues(c.show.Name, "ok").Inc()
}

// probeSource buffers the stream's leading bytes, hands them to ffprobe to
// recover the real source sample rate/channel count (§4.2), and returns a
// reader that replays those buffered bytes ahead of the rest of src so no
// audio is lost to the probe.
func (c *Controller) probeSource(src *streamsource.Source, inputFormat string) (io.Reader, int, int) {
	head := make([]byte, probeHeadBytes)
	n, _ := io.ReadFull(src, head)
	head = head[:n]
	reader := io.MultiReader(bytes.NewReader(head), src)

	rate, channels, err := decode.Probe(head, inputFormat)
	if err != nil || rate <= 0 {
		log.Printf("⚠️  %s: probe source rate: %v (falling back to %dHz)", c.show.Name, err, fallbackSourceRate)
		rate = fallbackSourceRate
	}
	if channels <= 0 {
		channels = 2
	}
	return reader, rate, channels
}

// buildEncoder returns the encoder for show.AudioFormat, the priming
// sample count it introduces, whether its chunks need Ogg wrapping, and any
// construction error. WAV has no codec-required target rate, so it encodes
// at the stream's actual sourceRate instead of a fixed constant.
func buildEncoder(show config.ShowConfig, sourceRate int) (encode.Encoder, int, bool, error) {
	switch show.AudioFormat {
	case config.FormatOpus:
		enc, err := encode.NewOpusEncoder(show.BitrateKbps * 1000)
		return enc, 0, true, err
	case config.FormatAAC:
		enc, err := encode.NewAACEncoder(16000, show.BitrateKbps)
		return enc, encode.AACPrimingSamples, false, err
	default:
		return encode.NewWAVEncoder(sourceRate), 0, false, nil
	}
}

func inputFormatFor(contentType string) string {
	switch contentType {
	case "audio/aac", "audio/aacp":
		return "aac"
	default:
		return "mp3"
	}
}
