// Package fmp4 hand-builds fragmented MP4 boxes (moof/mdat) around raw
// Opus or AAC frames, the same way the teacher's metadata package built
// FLAC blocks by hand with encoding/binary rather than a container library
// (none exists in the retrieved corpus for fMP4 either).
package fmp4

import (
	"bytes"
	"encoding/binary"
)

// box writes a length-prefixed ISO BMFF box: 4-byte big-endian size
// (including the 8-byte header), 4-byte type, then payload.
func box(boxType string, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload))
	out = appendUint32BE(out, uint32(8+len(payload)))
	out = append(out, boxType...)
	return append(out, payload...)
}

func appendUint32BE(b []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, v)
	return append(b, tmp...)
}

// InitSegment builds the ftyp+moov boxes describing one mono audio track,
// served once per playback session ahead of any media fragments.
func InitSegment(trackID uint32, sampleRate uint32, channels uint16, codec string) []byte {
	ftyp := box("ftyp", concat([]byte("iso5"), u32(0), []byte("iso5"), []byte("iso6"), []byte("mp41")))

	mvhd := box("mvhd", concat(
		make([]byte, 4), // version/flags
		u32(0), u32(0), // creation/modification time
		u32(1000), u32(0), // timescale, duration
		[]byte{0, 1, 0, 0}, // rate 1.0
		[]byte{1, 0},       // volume 1.0
		make([]byte, 2+8),  // reserved
		identityMatrix(),
		make([]byte, 24), // predefined
		u32(trackID+1),   // next track ID
	))

	tkhd := box("tkhd", concat(
		[]byte{0, 0, 0, 7}, // version/flags: enabled+in movie+in preview
		u32(0), u32(0),
		u32(trackID),
		make([]byte, 4),
		u32(0), // duration
		make([]byte, 8),
		make([]byte, 2), // layer
		make([]byte, 2), // alternate group
		[]byte{1, 0},    // volume
		make([]byte, 2),
		identityMatrix(),
		u32(0), u32(0), // width/height (audio-only, fixed-point)
	))

	mdhd := box("mdhd", concat(
		make([]byte, 4),
		u32(0), u32(0),
		u32(sampleRate), u32(0),
		[]byte{0x55, 0xc4}, // language "und"
		make([]byte, 2),
	))

	hdlr := box("hdlr", concat(
		make([]byte, 4),
		make([]byte, 4),
		[]byte("soun"),
		make([]byte, 12),
		[]byte("SoundHandler\x00"),
	))

	smhd := box("smhd", make([]byte, 8))
	dref := box("dref", concat(u32(1), box("url ", []byte{0, 0, 0, 1})))
	dinf := box("dinf", dref)

	esds := audioSampleEntry(codec, channels, sampleRate)
	stsd := box("stsd", concat(u32(1), esds))
	stts := box("stts", make([]byte, 8))
	stsc := box("stsc", make([]byte, 8))
	stsz := box("stsz", make([]byte, 12))
	stco := box("stco", make([]byte, 8))
	stbl := box("stbl", concat(stsd, stts, stsc, stsz, stco))

	minf := box("minf", concat(smhd, dinf, stbl))
	mdia := box("mdia", concat(mdhd, hdlr, minf))
	trak := box("trak", concat(tkhd, mdia))

	mvex := box("mvex", box("trex", concat(
		u32(trackID), u32(1), u32(0), u32(0), u32(0),
	)))

	moov := box("moov", concat(mvhd, trak, mvex))

	return concat(ftyp, moov)
}

// audioSampleEntry writes a minimal mp4a/Opus sample description holding
// only the sample-entry fields (channels, sample size, sample rate); no
// esds or dOps codec-configuration child box is written.
func audioSampleEntry(codec string, channels uint16, sampleRate uint32) []byte {
	entryType := "mp4a"
	if codec == "opus" {
		entryType = "Opus"
	}
	body := concat(
		make([]byte, 6), // reserved
		[]byte{0, 1},     // data reference index
		make([]byte, 8),  // reserved
		u16(channels),
		[]byte{0, 16}, // sample size
		make([]byte, 4),
		u32(sampleRate<<16),
	)
	return box(entryType, body)
}

// Fragment builds one moof+mdat pair carrying a single chunk's frames as
// one run, with sampleDurations giving each sample's duration so gapless
// playback across chunk boundaries holds even when the final frame in a
// chunk is shorter than the codec's nominal frame size.
func Fragment(sequenceNumber uint32, trackID uint32, baseDecodeTime uint64, frames [][]byte, sampleDurations []uint32) []byte {
	mfhd := box("mfhd", concat(make([]byte, 4), u32(sequenceNumber)))

	tfhd := box("tfhd", concat([]byte{0, 0x02, 0, 0}, u32(trackID)))

	tfdt := box("tfdt", concat([]byte{1, 0, 0, 0}, u64(baseDecodeTime)))

	hasDurations := len(sampleDurations) == len(frames)
	trun := concat(
		[]byte{0, 0, 0x03, 0x01}, // version 0, flags: data-offset + sample-duration + sample-size
		u32(uint32(len(frames))),
		u32(0), // data offset, patched below
	)
	for i, f := range frames {
		dur := uint32(0)
		if hasDurations {
			dur = sampleDurations[i]
		}
		trun = concat(trun, u32(dur), u32(uint32(len(f))))
	}
	trunBox := box("trun", trun)

	traf := box("traf", concat(tfhd, tfdt, trunBox))
	moof := box("moof", concat(mfhd, traf))

	var mdatPayload []byte
	for _, f := range frames {
		mdatPayload = append(mdatPayload, f...)
	}
	mdat := box("mdat", mdatPayload)

	dataOffset := uint32(len(moof) + 8)
	patchTrunDataOffset(moof, dataOffset)

	return concat(moof, mdat)
}

// patchTrunDataOffset overwrites the trun box's data-offset field in place
// once the moof box's total length (and therefore mdat's start) is known.
func patchTrunDataOffset(moof []byte, offset uint32) {
	idx := bytes.Index(moof, []byte("trun"))
	if idx < 0 {
		return
	}
	// trun box: [size(4)][type(4)][version/flags(4)][sample_count(4)][data_offset(4)]...
	offsetPos := idx + 4 + 4 + 4
	binary.BigEndian.PutUint32(moof[offsetPos:offsetPos+4], offset)
}

func identityMatrix() []byte {
	m := make([]byte, 36)
	binary.BigEndian.PutUint32(m[0:4], 1<<16)
	binary.BigEndian.PutUint32(m[16:20], 1<<16)
	binary.BigEndian.PutUint32(m[32:36], 1<<30)
	return m
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
