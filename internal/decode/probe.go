package decode

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Probe recovers the actual source sample rate and channel count of a
// compressed stream by running ffprobe against its first buffered bytes,
// the same ffmpeg-subprocess idiom Start drives the decode pipe with.
// Icecast/Shoutcast sources never declare these up front, so C3 cannot pick
// a correct resampler ratio without this step.
func Probe(head []byte, inputFormat string) (sampleRate, channels int, err error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-f", inputFormat,
		"-i", "pipe:0",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
	)
	cmd.Stdin = bytes.NewReader(head)

	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(out)
}

// parseProbeOutput reads ffprobe's "key=value" lines, isolated from the
// subprocess call above so the parsing logic can be tested without an
// ffprobe binary on hand.
func parseProbeOutput(out []byte) (sampleRate, channels int, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		kv := strings.SplitN(scanner.Text(), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "sample_rate":
			sampleRate, _ = strconv.Atoi(kv[1])
		case "channels":
			channels, _ = strconv.Atoi(kv[1])
		}
	}
	if sampleRate == 0 {
		return 0, 0, fmt.Errorf("ffprobe: no sample_rate reported")
	}
	return sampleRate, channels, nil
}
