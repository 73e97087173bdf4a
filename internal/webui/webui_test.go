package webui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-streamkeeper/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "show.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.InitShow("morning-show", "wav", 16000, 1, 0, 168))
	return New(db, "morning-show")
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func TestHealth_ReportsOK(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSections_EmptyShowReturnsEmptyList(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodGet, "/sections")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 0)
}

func TestGetSection_UnknownIDReturns404(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodGet, "/sections/999")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSection_InvalidIDReturns400(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodGet, "/sections/not-a-number")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlaylist_RendersM3U8ForKnownSection(t *testing.T) {
	s := testServer(t)
	sec, err := s.db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	_, err = s.db.AppendChunk(sec.ID, 0, 16000, 1000, true, []byte("abcd"))
	require.NoError(t, err)

	rec := do(s, http.MethodGet, "/sections/"+itoa(sec.ID)+"/playlist.m3u8")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#EXTM3U")
}

func TestExportSection_MarksSectionExported(t *testing.T) {
	s := testServer(t)
	sec, err := s.db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sections/"+itoa(sec.ID)+"/export", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	got, err := s.db.GetSection(sec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsExportedToRemote)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
