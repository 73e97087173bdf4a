// Command record runs the Session Controllers for every configured show,
// capturing live audio and writing gapless chunks into one SQLite database
// per show.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"momo-streamkeeper/internal/config"
	"momo-streamkeeper/internal/metrics"
	"momo-streamkeeper/internal/session"
	"momo-streamkeeper/internal/store"
	"momo-streamkeeper/internal/syncapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("c", "", "path to config.yaml")
	port := flag.String("p", "", "sync API port override")
	flag.Parse()

	cfg := config.Load(*configPath)
	if *port != "" {
		cfg.Server.APIPort = *port
	}

	log.Println("🚀 Starting stream recorder...")

	metrics.Register()
	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️  metrics server error: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		log.Fatalf("❌ create data dir: %v", err)
	}

	registry := syncapi.Registry{}
	var controllers []*session.Controller

	for _, show := range cfg.Shows {
		if err := show.Validate(); err != nil {
			log.Fatalf("❌ invalid show config: %v", err)
		}

		dbPath := filepath.Join(cfg.Server.DataDir, show.Name+".sqlite")
		db, err := store.OpenSQLite(dbPath)
		if err != nil {
			log.Fatalf("❌ open database for %q: %v", show.Name, err)
		}

		registry[show.Name] = db
		controllers = append(controllers, session.New(show, db, nil))
		log.Printf("✅ show %q ready (db=%s)", show.Name, dbPath)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	syncapi.New(registry).RegisterRoutes(router)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("🛑 shutdown requested")
		cancel()
	}()

	var wg sync.WaitGroup
	for _, ctrl := range controllers {
		wg.Add(1)
		go func(c *session.Controller) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Printf("⚠️  controller stopped: %v", err)
			}
		}(ctrl)
	}

	go func() {
		log.Printf("🚀 sync API listening on %s", cfg.Server.APIPort)
		if err := router.Run(cfg.Server.APIPort); err != nil {
			log.Printf("⚠️  sync api server error: %v", err)
		}
	}()

	wg.Wait()
}
