// Package webui serves playback HTTP endpoints for the inspect and
// receiver binaries: section listings, HLS playlists, and fMP4/ADTS
// segment bytes, grounded in the teacher's gin route-group server shape.
package webui

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"momo-streamkeeper/internal/playlist"
	"momo-streamkeeper/internal/store"
)

// Server serves one show database's sections and chunks for playback.
type Server struct {
	db       *store.Store
	showName string
	router   *gin.Engine
}

func New(db *store.Store, showName string) *Server {
	s := &Server{db: db, showName: showName, router: gin.Default()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "streamkeeper"})
	})

	v1 := s.router.Group("/sections")
	{
		v1.GET("", s.listSections)
		v1.GET("/:id", s.getSection)
		v1.GET("/:id/playlist.m3u8", s.getPlaylist)
		v1.GET("/:id/init.mp4", s.getInitSegment)
		v1.GET("/:id/chunks/:chunkID.m4s", s.getFragment)
		v1.POST("/:id/export", s.exportSection)
	}
}

// Start runs the HTTP server on addr, same signature as the teacher's
// Server.Start.
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) listSections(c *gin.Context) {
	sections, err := s.db.ListSections(s.showName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sections})
}

func (s *Server) getSection(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section id"})
		return
	}
	sec, err := s.db.GetSection(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (s *Server) getPlaylist(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section id"})
		return
	}
	meta, err := s.db.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chunks, err := s.db.ListChunks(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(playlist.BuildM3U8(s.showName, id, meta.SampleRate, chunks)))
}

func (s *Server) getInitSegment(c *gin.Context) {
	meta, err := s.db.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "video/mp4", playlist.BuildInitSegment(meta.AudioFormat, meta.SampleRate))
}

func (s *Server) getFragment(c *gin.Context) {
	sectionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section id"})
		return
	}
	chunkID, err := strconv.ParseInt(c.Param("chunkID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk id"})
		return
	}

	meta, err := s.db.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chunks, err := s.db.ListChunks(sectionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var seq uint32
	for i, ch := range chunks {
		if ch.ID == chunkID {
			frag, err := playlist.BuildFragment(uint32(i+1), ch, meta.AudioFormat, frameSamplesFor(meta.AudioFormat))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.Data(http.StatusOK, "video/iso.segment", frag)
			return
		}
		seq++
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "chunk not found"})
}

func (s *Server) exportSection(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section id"})
		return
	}
	if err := s.db.MarkExported(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported"})
}

func frameSamplesFor(audioFormat string) int {
	switch audioFormat {
	case "aac":
		return 1024
	case "opus":
		return 960
	default:
		return 1024
	}
}
