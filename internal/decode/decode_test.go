package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadInt16_DecodesLittleEndianSamples(t *testing.T) {
	want := []int16{1, -2, 32767, -32768, 0}
	raw := make([]byte, len(want)*2)
	for i, s := range want {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}

	buf := make([]int16, len(want))
	n, err := ReadInt16(bytes.NewReader(raw), buf)

	assert.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, buf)
}

func TestReadInt16_PartialReadReturnsEOF(t *testing.T) {
	raw := []byte{1, 0, 2} // one full sample plus one dangling byte
	buf := make([]int16, 2)

	n, err := ReadInt16(bytes.NewReader(raw), buf)

	assert.Equal(t, 1, n)
	assert.Equal(t, io.EOF, err)
}

func TestReadInt16_EmptyReaderReturnsEOFImmediately(t *testing.T) {
	buf := make([]int16, 4)

	n, err := ReadInt16(bytes.NewReader(nil), buf)

	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}
