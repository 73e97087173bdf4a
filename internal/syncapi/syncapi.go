// Package syncapi implements C9: a read-only HTTP API that lets a replica
// pull a show's metadata, sections, and chunks for resumable sync, grounded
// in the gin route-group layout the teacher uses for its own API server.
package syncapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"momo-streamkeeper/internal/encode"
	"momo-streamkeeper/internal/store"
)

// Registry maps show name to its Store, one per configured show.
type Registry map[string]*store.Store

// Server exposes Registry's shows over HTTP for sync clients.
type Server struct {
	shows     Registry
	exporting sync.Map // section id -> struct{}, tracks in-flight export synthesis
}

func New(shows Registry) *Server {
	return &Server{shows: shows}
}

// RegisterRoutes mounts the sync endpoints. /health is intentionally
// root-level per §6's table rather than namespaced under /api/sync, since
// it answers liveness for the process as a whole, not one show.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.health)

	v1 := router.Group("/api/sync")
	{
		v1.GET("/shows", s.listShows)
		v1.GET("/shows/:name/metadata", s.showMetadata)
		v1.GET("/shows/:name/sections", s.listSections)
		v1.GET("/shows/:name/segments", s.listSegments)
		v1.GET("/shows/:name/sections/:section_id/export", s.exportSection)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listShows(c *gin.Context) {
	type showInfo struct {
		Name        string `json:"name"`
		AudioFormat string `json:"audio_format"`
	}
	var shows []showInfo
	for name, db := range s.shows {
		meta, err := db.Metadata()
		if err != nil {
			continue
		}
		shows = append(shows, showInfo{Name: name, AudioFormat: meta.AudioFormat})
	}
	c.JSON(http.StatusOK, gin.H{"shows": shows})
}

func (s *Server) showMetadata(c *gin.Context) {
	db, ok := s.shows[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown show"})
		return
	}

	meta, err := db.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	minID, _ := db.MinChunkID()
	maxID, _ := db.MaxChunkID()

	c.JSON(http.StatusOK, gin.H{
		"unique_id":       meta.UniqueID,
		"name":            meta.ShowName,
		"audio_format":    meta.AudioFormat,
		"bitrate":         meta.BitrateKbps,
		"sample_rate":     meta.SampleRate,
		"split_interval":  meta.SplitInterval,
		"version":         meta.Version,
		"priming_samples": meta.PrimingSamples,
		"retention_hours": meta.RetentionHours,
		"is_recipient":    meta.IsRecipient,
		"min_id":          minID,
		"max_id":          maxID,
	})
}

// listSections serves a show's sections ascending by start_timestamp_ms, so
// a replica can enumerate section boundaries ahead of pulling segments.
func (s *Server) listSections(c *gin.Context) {
	db, ok := s.shows[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown show"})
		return
	}

	sections, err := db.ListSections(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type sectionInfo struct {
		ID               int64 `json:"id"`
		StartTimestampMs int64 `json:"start_timestamp_ms"`
	}
	out := make([]sectionInfo, 0, len(sections))
	for i := len(sections) - 1; i >= 0; i-- { // ListSections is most-recent-first; §6 wants ascending
		out = append(out, sectionInfo{ID: sections[i].ID, StartTimestampMs: sections[i].StartTimestampMs})
	}
	c.JSON(http.StatusOK, out)
}

// listSegments serves a page of chunks in [start_id, end_id], bounded by
// limit, for the replica's paged pull loop (§4.9(a)).
func (s *Server) listSegments(c *gin.Context) {
	db, ok := s.shows[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown show"})
		return
	}

	startID, _ := strconv.ParseInt(c.Query("start_id"), 10, 64)
	endID, _ := strconv.ParseInt(c.Query("end_id"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	if limit <= 0 {
		limit = 100
	}

	chunks, err := db.ChunksInRange(startID, endID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type segment struct {
		ID                    int64  `json:"id"`
		TimestampMs           int64  `json:"timestamp_ms"`
		IsTimestampFromSource bool   `json:"is_timestamp_from_source"`
		SectionID             int64  `json:"section_id"`
		BoundaryOffset        int64  `json:"boundary_offset"`
		DurationSamples       int64  `json:"duration_samples"`
		AudioData             string `json:"audio_data"`
	}
	out := make([]segment, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, segment{
			ID:                    ch.ID,
			TimestampMs:           ch.TimestampMs,
			IsTimestampFromSource: ch.IsTimestampFromSource,
			SectionID:             ch.SectionID,
			BoundaryOffset:        ch.BoundaryOffset,
			DurationSamples:       ch.DurationSamples,
			AudioData:             base64.StdEncoding.EncodeToString(ch.Payload),
		})
	}
	c.JSON(http.StatusOK, out)
}

// exportSection synthesizes a single playable file for a whole section,
// concatenating its stored chunks in boundary order (invariant I3) and
// wrapping them per §6's format table: Opus chunks are already
// independently-playable Ogg pages and concatenate as a chained Ogg stream;
// AAC chunks are raw ADTS frames and concatenate directly; WAV chunks carry
// no header and are wrapped once with the section's true byte count.
func (s *Server) exportSection(c *gin.Context) {
	db, ok := s.shows[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown show"})
		return
	}
	sectionID, err := strconv.ParseInt(c.Param("section_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section id"})
		return
	}

	if _, inProgress := s.exporting.LoadOrStore(sectionID, struct{}{}); inProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "export already in progress for this section"})
		return
	}
	defer s.exporting.Delete(sectionID)

	sec, err := db.GetSection(sectionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
		return
	}
	meta, err := db.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chunks, err := db.ListChunks(sec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var payload []byte
	for _, ch := range chunks {
		payload = append(payload, ch.Payload...)
	}

	ext := extensionFor(meta.AudioFormat)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="section-%d.%s"`, sec.ID, ext))

	switch meta.AudioFormat {
	case "opus":
		c.Data(http.StatusOK, "audio/ogg", payload)
	case "aac":
		c.Data(http.StatusOK, "audio/aac", payload)
	default:
		c.Data(http.StatusOK, "audio/wav", encode.WAVFile(meta.SampleRate, payload))
	}
}

// extensionFor names the file extension §6 expects per audio format.
func extensionFor(audioFormat string) string {
	switch audioFormat {
	case "opus":
		return "ogg"
	case "aac":
		return "aac"
	default:
		return "wav"
	}
}
