package syncapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-streamkeeper/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "show.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.InitShow("morning-show", "opus", 48000, 1, 0, 168))
	return db
}

func newTestRouter(reg Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(reg).RegisterRoutes(router)
	return router
}

func TestListShows_ReturnsAllRegisteredNames(t *testing.T) {
	reg := Registry{"morning-show": testStore(t), "evening-show": testStore(t)}
	router := newTestRouter(reg)

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Shows []struct {
			Name string `json:"name"`
		} `json:"shows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Shows, 2)
}

func TestShowMetadata_UnknownShowReturns404(t *testing.T) {
	router := newTestRouter(Registry{})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/nope/metadata", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShowMetadata_ReturnsSeededFields(t *testing.T) {
	db := testStore(t)
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/morning-show/metadata", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "morning-show", body["name"])
	assert.Equal(t, "opus", body["audio_format"])
	assert.EqualValues(t, 48000, body["sample_rate"])
}

func TestListSegments_PagesFromStartID(t *testing.T) {
	db := testStore(t)
	sec, err := db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := db.AppendChunk(sec.ID, int64(i)*48000, 48000, int64(i)*1000, i == 0, []byte{byte(i)})
		require.NoError(t, err)
	}
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/morning-show/segments?start_id=2&limit=10", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var segs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &segs))
	require.Len(t, segs, 2) // chunks with id >= 2
}

func TestListSegments_EndIDBoundsTheUpperEdge(t *testing.T) {
	db := testStore(t)
	sec, err := db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := db.AppendChunk(sec.ID, int64(i)*48000, 48000, int64(i)*1000, i == 0, []byte{byte(i)})
		require.NoError(t, err)
	}
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/morning-show/segments?start_id=2&end_id=3&limit=10", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var segs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &segs))
	require.Len(t, segs, 2) // chunks with 2 <= id <= 3
}

func TestListSegments_IncludesTimestampAndSectionFields(t *testing.T) {
	db := testStore(t)
	sec, err := db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	_, err = db.AppendChunk(sec.ID, 0, 48000, 1000, true, []byte("abcd"))
	require.NoError(t, err)
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/morning-show/segments?start_id=1&limit=10", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var segs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &segs))
	require.Len(t, segs, 1)
	assert.EqualValues(t, 1000, segs[0]["timestamp_ms"])
	assert.Equal(t, true, segs[0]["is_timestamp_from_source"])
	assert.EqualValues(t, sec.ID, segs[0]["section_id"])
}

func TestHealth_ReturnsOK(t *testing.T) {
	router := newTestRouter(Registry{})

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSections_ReturnsAscendingByStartTimestamp(t *testing.T) {
	db := testStore(t)
	_, err := db.OpenSection(2000, "morning-show", 2000)
	require.NoError(t, err)
	_, err = db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/shows/morning-show/sections", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var secs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &secs))
	require.Len(t, secs, 2)
	assert.EqualValues(t, 1000, secs[0]["start_timestamp_ms"])
	assert.EqualValues(t, 2000, secs[1]["start_timestamp_ms"])
}

func TestExportSection_SynthesizesWAVWithHeader(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "show.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.InitShow("morning-show", "wav", 16000, 1, 0, 168))
	sec, err := db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	_, err = db.AppendChunk(sec.ID, 0, 4, 1000, true, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	router := newTestRouter(Registry{"morning-show": db})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/sync/shows/morning-show/sections/%d/export", sec.ID), http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestExportSection_ConcurrentRequestsGet409(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "show.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.InitShow("morning-show", "wav", 16000, 1, 0, 168))
	sec, err := db.OpenSection(1000, "morning-show", 1000)
	require.NoError(t, err)
	_, err = db.AppendChunk(sec.ID, 0, 4, 1000, true, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	srv := New(Registry{"morning-show": db})
	srv.exporting.Store(sec.ID, struct{}{})
	router := newTestRouter2(srv)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/sync/shows/morning-show/sections/%d/export", sec.ID), http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func newTestRouter2(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	srv.RegisterRoutes(router)
	return router
}
