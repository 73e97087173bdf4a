package streamsource

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_CapturesDateHeaderAsWallOrigin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.Header.Get("Icy-MetaData"))
		w.Header().Set("Date", "Mon, 03 Aug 2026 08:00:00 GMT")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("stream-bytes"))
	}))
	defer server.Close()

	src, err := Connect(context.Background(), server.URL)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "audio/mpeg", src.ContentType)
	assert.Equal(t, time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC), src.WallOrigin)

	body, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "stream-bytes", string(body))
}

func TestConnect_RejectsMissingDateHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Date"] = nil // stop net/http from adding its own Date header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	src, err := Connect(context.Background(), server.URL)

	require.Error(t, err)
	assert.Nil(t, src)
	assert.Contains(t, err.Error(), "Date header")
}

func TestConnect_NonOKStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Connect(context.Background(), server.URL)

	assert.Error(t, err)
}
