package fmp4

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSegment_StartsWithFtypThenMoov(t *testing.T) {
	init := InitSegment(1, 48000, 1, "opus")

	require.True(t, len(init) > 16)
	ftypSize := binary.BigEndian.Uint32(init[0:4])
	assert.Equal(t, "ftyp", string(init[4:8]))

	moovStart := ftypSize
	require.True(t, uint32(len(init)) > moovStart+8)
	assert.Equal(t, "moov", string(init[moovStart+4:moovStart+8]))
}

func TestFragment_MdatImmediatelyFollowsMoofAndHoldsConcatenatedFrames(t *testing.T) {
	frames := [][]byte{[]byte("aaaa"), []byte("bb"), []byte("cccccc")}
	durations := []uint32{960, 960, 480}

	frag := Fragment(7, 1, 1000, frames, durations)

	moofSize := binary.BigEndian.Uint32(frag[0:4])
	assert.Equal(t, "moof", string(frag[4:8]))

	mdatStart := moofSize
	require.True(t, uint32(len(frag)) > mdatStart+8)
	assert.Equal(t, "mdat", string(frag[mdatStart+4:mdatStart+8]))

	var want []byte
	for _, f := range frames {
		want = append(want, f...)
	}
	assert.Equal(t, want, frag[mdatStart+8:])
}

func TestFragment_TrunDataOffsetPointsPastMoofHeader(t *testing.T) {
	frames := [][]byte{[]byte("x")}
	frag := Fragment(1, 1, 0, frames, []uint32{960})

	moofSize := binary.BigEndian.Uint32(frag[0:4])

	trunIdx := indexOf(frag[:moofSize], "trun")
	require.True(t, trunIdx >= 0)
	offsetPos := trunIdx + 4 + 4 + 4
	dataOffset := binary.BigEndian.Uint32(frag[offsetPos : offsetPos+4])

	assert.Equal(t, moofSize+8, dataOffset)
}

func indexOf(b []byte, s string) int {
	for i := 0; i+len(s) <= len(b); i++ {
		if string(b[i:i+len(s)]) == s {
			return i
		}
	}
	return -1
}
