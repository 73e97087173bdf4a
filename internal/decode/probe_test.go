package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProbeOutput_ReadsSampleRateAndChannels(t *testing.T) {
	rate, channels, err := parseProbeOutput([]byte("sample_rate=44100\nchannels=2\n"))

	assert.NoError(t, err)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 2, channels)
}

func TestParseProbeOutput_MissingSampleRateErrors(t *testing.T) {
	_, _, err := parseProbeOutput([]byte("channels=2\n"))

	assert.Error(t, err)
}

func TestParseProbeOutput_IgnoresMalformedLines(t *testing.T) {
	rate, _, err := parseProbeOutput([]byte("garbage\nsample_rate=22050\n"))

	assert.NoError(t, err)
	assert.Equal(t, 22050, rate)
}
