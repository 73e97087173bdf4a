// Command inspect serves one show database's sections and chunks for
// local playback and replica sync, without running a Session Controller.
// Useful for browsing a recorder's database directly or standing up an ad
// hoc sync source for a single show.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"momo-streamkeeper/internal/store"
	"momo-streamkeeper/internal/syncapi"
	"momo-streamkeeper/internal/webui"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	port := flag.String("p", ":8082", "sync API listen address")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("usage: inspect <db_path> [-p <port>]")
	}
	dbPath := args[0]

	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		log.Fatalf("❌ open %s: %v", dbPath, err)
	}

	showName := showNameFromPath(dbPath)
	if meta, err := db.Metadata(); err == nil && meta.ShowName != "" {
		showName = meta.ShowName
	}

	log.Printf("🔍 inspecting %q (%s)", showName, dbPath)

	gin.SetMode(gin.ReleaseMode)

	syncRouter := gin.Default()
	syncapi.New(syncapi.Registry{showName: db}).RegisterRoutes(syncRouter)
	go func() {
		log.Printf("🚀 sync API listening on %s", *port)
		if err := syncRouter.Run(*port); err != nil {
			log.Printf("⚠️  sync api error: %v", err)
		}
	}()

	playbackAddr := offsetPort(*port, 1)
	log.Printf("🚀 playback UI listening on %s", playbackAddr)
	if err := webui.New(db, showName).Start(playbackAddr); err != nil {
		log.Fatalf("❌ playback server error: %v", err)
	}
}

func showNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// offsetPort shifts a ":NNNN" listen address by delta, so the playback UI
// doesn't collide with the sync API on the same host.
func offsetPort(addr string, delta int) string {
	n, err := strconv.Atoi(strings.TrimPrefix(addr, ":"))
	if err != nil {
		n = 8082
	}
	return ":" + strconv.Itoa(n+delta)
}
