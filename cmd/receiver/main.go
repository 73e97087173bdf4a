// Command receiver runs as a replica: it pulls chunks from a remote
// recorder's sync API into a local Postgres database per show, and
// optionally serves them back over the playback web UI.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"momo-streamkeeper/internal/config"
	"momo-streamkeeper/internal/metrics"
	"momo-streamkeeper/internal/store"
	"momo-streamkeeper/internal/syncclient"
	"momo-streamkeeper/internal/webui"
)

const pollInterval = 30 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "", "path to config.yaml")
	syncOnly := flag.Bool("sync-only", false, "pull chunks but do not serve the playback web UI")
	flag.Parse()

	cfg := config.Load(*configPath)
	log.Println("🚀 Starting receiver...")

	metrics.Register()
	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️  metrics server error: %v", err)
		}
	}()

	showNames := cfg.Sync.Shows
	if len(showNames) == 0 {
		log.Fatalf("❌ sync.shows must list at least one show to replicate")
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("🛑 shutdown requested")
		close(done)
	}()

	basePort := portNumber(cfg.Server.APIPort)

	for i, name := range showNames {
		dbName := cfg.Database.Prefix + "_" + name
		db, err := store.OpenPostgres(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, dbName)
		if err != nil {
			log.Fatalf("❌ open replica database for %q: %v", name, err)
		}

		worker := syncclient.New(cfg.Sync.RemoteURL, name, cfg.Sync.ChunkSize, db)
		go worker.Run(pollInterval, done)

		if !*syncOnly {
			// Each show gets its own webui.Server, so give each one a
			// distinct port: basePort, basePort+1, basePort+2, ...
			addr := fmt.Sprintf(":%d", basePort+i)
			srv := webui.New(db, name)
			go func(showName, listenAddr string, s *webui.Server) {
				log.Printf("🚀 playback UI for %q starting on %s", showName, listenAddr)
				if err := s.Start(listenAddr); err != nil {
					log.Printf("⚠️  playback server error for %q: %v", showName, err)
				}
			}(name, addr, srv)
		}
	}

	<-done
}

// portNumber parses the numeric part of a ":8081"-style listen address,
// falling back to 8081 if cfg.Server.APIPort is unset or malformed.
func portNumber(addr string) int {
	trimmed := strings.TrimPrefix(addr, ":")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n == 0 {
		return 8081
	}
	return n
}
