package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExporter_WritesUnderBucketAndKey(t *testing.T) {
	root := t.TempDir()
	exp := NewLocalExporter(root)

	err := exp.Export("morning-show", "2026/08/03/section-1.bin", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "morning-show", "2026/08/03/section-1.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestLocalExporter_CreatesRootIfMissing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "archive")

	exp := NewLocalExporter(root)

	_, err := os.Stat(root)
	assert.NoError(t, err)

	err = exp.Export("show", "key.bin", bytes.NewReader([]byte("x")))
	assert.NoError(t, err)
}

func TestSectionExportKey_GroupsByShowAndDay(t *testing.T) {
	sec := Section{ID: 42, StartTimestampMs: 1754208000000} // 2025-08-03T08:00:00Z

	key := SectionExportKey("morning-show", sec)

	assert.Equal(t, "morning-show/2025-08-03/section-42.bin", key)
}
