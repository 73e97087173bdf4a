// Package ogg hand-builds the minimal Ogg container framing around Opus
// packets needed to make each stored chunk a self-contained, independently
// decodable file: an OpusHead page, an OpusTags page, then one page per
// audio packet. No container library exists anywhere in the retrieved
// corpus, so this follows the byte layout the original recorder wrote by
// hand in its own audio module.
package ogg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	pageMagic   = "OggS"
	headerBytes = "OpusHead"
	vendorName  = "momo-streamkeeper"
)

var crcTable = crc32.MakeTable(0x04C11DB7)

// Writer builds one Ogg stream from Opus packets. A Writer is created per
// stored chunk so the chunk's payload is a playable Ogg file on its own.
type Writer struct {
	serial       uint32
	channels     int
	sampleRate   uint32
	granulePos   int64
	pageSequence uint32
	wroteHeaders bool
	buf          bytes.Buffer
}

// NewWriter starts a new Ogg stream for one mono or stereo Opus track.
func NewWriter(serial uint32, channels int, sampleRate uint32) *Writer {
	return &Writer{serial: serial, channels: channels, sampleRate: sampleRate}
}

// WritePacket appends one Opus packet covering sampleCount samples at
// 48kHz, writing the OpusHead/OpusTags header pages first if needed.
func (w *Writer) WritePacket(packet []byte, sampleCount int) {
	if !w.wroteHeaders {
		w.writePage(opusHead(w.channels, w.sampleRate), 0, 0x02) // beginning-of-stream
		w.writePage(opusCommentHeader(), 0, 0x00)
		w.wroteHeaders = true
	}
	w.granulePos += int64(sampleCount)
	w.writePage(packet, w.granulePos, 0x00)
}

// Finish writes the header pages if no packet has written them yet, then
// the end-of-stream flag on an empty final page, and returns the complete
// Ogg file bytes.
func (w *Writer) Finish() []byte {
	if !w.wroteHeaders {
		w.writePage(opusHead(w.channels, w.sampleRate), 0, 0x02) // beginning-of-stream
		w.writePage(opusCommentHeader(), 0, 0x00)
		w.wroteHeaders = true
	}
	w.writePage(nil, w.granulePos, 0x04) // end-of-stream
	return w.buf.Bytes()
}

func (w *Writer) writePage(segment []byte, granulePos int64, headerType byte) {
	var segTable []byte
	remaining := segment
	for len(remaining) >= 255 {
		segTable = append(segTable, 255)
		remaining = remaining[255:]
	}
	segTable = append(segTable, byte(len(remaining)))

	page := make([]byte, 0, 27+len(segTable)+len(segment))
	page = append(page, pageMagic...)
	page = append(page, 0) // stream structure version
	page = append(page, headerType)
	page = appendUint64LE(page, uint64(granulePos))
	page = appendUint32LE(page, w.serial)
	page = appendUint32LE(page, w.pageSequence)
	page = appendUint32LE(page, 0) // checksum placeholder
	page = append(page, byte(len(segTable)))
	page = append(page, segTable...)
	page = append(page, segment...)

	crc := crc32.Checksum(page, crcTable)
	binary.LittleEndian.PutUint32(page[22:26], crc)

	w.pageSequence++
	w.buf.Write(page)
}

func opusHead(channels int, sampleRate uint32) []byte {
	h := make([]byte, 0, 19)
	h = append(h, headerBytes...)
	h = append(h, 1)           // version
	h = append(h, byte(channels))
	h = appendUint16LE(h, 0)   // pre-skip
	h = appendUint32LE(h, sampleRate)
	h = appendUint16LE(h, 0) // output gain
	h = append(h, 0)         // channel mapping family
	return h
}

func opusCommentHeader() []byte {
	h := make([]byte, 0, 32)
	h = append(h, "OpusTags"...)
	h = appendUint32LE(h, uint32(len(vendorName)))
	h = append(h, vendorName...)
	h = appendUint32LE(h, 0) // user comment count
	return h
}

func appendUint16LE(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(b []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}

// Validate is a cheap sanity check used by tests and the sync client: does
// data start with a valid Ogg page.
func Validate(data []byte) error {
	if len(data) < 27 || string(data[:4]) != pageMagic {
		return fmt.Errorf("not an ogg stream: missing OggS capture pattern")
	}
	return nil
}
