// Package playlist implements C8: assembling an HLS m3u8 playlist and
// serving fMP4 (Opus) or ADTS (AAC) media segments directly from stored
// chunks, never re-encoding at serve time.
package playlist

import (
	"fmt"
	"strings"

	"momo-streamkeeper/internal/fmp4"
	"momo-streamkeeper/internal/store"
)

// BuildM3U8 renders an HLS media playlist covering the given chunks, one
// #EXTINF per chunk using its exact stored duration so the playlist stays
// frame-accurate without probing the payload.
func BuildM3U8(showName string, sectionID int64, sampleRate int, chunks []store.Chunk) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-TARGETDURATION:10\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	b.WriteString(fmt.Sprintf("#EXT-X-MAP:URI=\"/sections/%d/init.mp4\"\n", sectionID))

	for _, c := range chunks {
		durSeconds := float64(c.DurationSamples) / float64(sampleRate)
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", durSeconds))
		b.WriteString(fmt.Sprintf("/sections/%d/chunks/%d.m4s\n", sectionID, c.ID))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// BuildInitSegment returns the fMP4 initialization segment for a section,
// describing the track once so per-chunk fragments can stay minimal.
func BuildInitSegment(audioFormat string, sampleRate int) []byte {
	codec := "mp4a"
	if audioFormat == "opus" {
		codec = "opus"
	}
	return fmp4.InitSegment(1, uint32(sampleRate), 1, codec)
}

// BuildFragment wraps one stored chunk's already-encoded payload as an
// fMP4 media fragment. For Opus chunks the Ogg-wrapped payload is
// unwrapped back to raw packets first since fMP4 carries frames directly.
func BuildFragment(sequenceNumber uint32, chunk store.Chunk, audioFormat string, frameSamples int) ([]byte, error) {
	frames, err := splitFrames(chunk.Payload, audioFormat)
	if err != nil {
		return nil, err
	}

	durations := make([]uint32, len(frames))
	for i := range durations {
		durations[i] = uint32(frameSamples)
	}
	if len(durations) > 0 {
		// last frame in a chunk may be shorter than the nominal frame size
		consumed := int64(frameSamples) * int64(len(frames)-1)
		durations[len(durations)-1] = uint32(chunk.DurationSamples - consumed)
	}

	return fmp4.Fragment(sequenceNumber, 1, uint64(chunk.BoundaryOffset), frames, durations), nil
}

// splitFrames recovers individual codec frames from a stored chunk payload
// so they can be re-packed into fMP4 sample runs.
func splitFrames(payload []byte, audioFormat string) ([][]byte, error) {
	switch audioFormat {
	case "aac":
		return splitADTS(payload)
	case "opus":
		return splitOgg(payload)
	default:
		return [][]byte{payload}, nil
	}
}

func splitADTS(payload []byte) ([][]byte, error) {
	var frames [][]byte
	for i := 0; i+7 <= len(payload); {
		if payload[i] != 0xFF || payload[i+1]&0xF0 != 0xF0 {
			return nil, fmt.Errorf("invalid ADTS sync at offset %d", i)
		}
		frameLen := int(payload[i+3]&0x03)<<11 | int(payload[i+4])<<3 | int(payload[i+5])>>5
		if frameLen < 7 || i+frameLen > len(payload) {
			return nil, fmt.Errorf("invalid ADTS frame length at offset %d", i)
		}
		frames = append(frames, payload[i:i+frameLen])
		i += frameLen
	}
	return frames, nil
}

// splitOgg walks an Ogg bitstream's page headers and returns each page's
// packet data as one frame — sufficient here since the chunker always
// writes exactly one Opus packet per Ogg page.
func splitOgg(payload []byte) ([][]byte, error) {
	var frames [][]byte
	i := 0
	for i+27 <= len(payload) {
		if string(payload[i:i+4]) != "OggS" {
			return nil, fmt.Errorf("invalid ogg capture pattern at offset %d", i)
		}
		headerType := payload[i+5]
		segCount := int(payload[i+26])
		segTable := payload[i+27 : i+27+segCount]
		dataStart := i + 27 + segCount

		segLen := 0
		for _, s := range segTable {
			segLen += int(s)
		}

		if headerType&0x02 == 0 && headerType&0x04 == 0 && segLen > 0 {
			// skip the two header pages (OpusHead/OpusTags carry no PCM)
			if !isOpusHeaderPage(payload[dataStart : dataStart+segLen]) {
				frames = append(frames, payload[dataStart:dataStart+segLen])
			}
		}

		i = dataStart + segLen
	}
	return frames, nil
}

func isOpusHeaderPage(data []byte) bool {
	return len(data) >= 8 && (string(data[:8]) == "OpusHead" || string(data[:8]) == "OpusTags")
}
