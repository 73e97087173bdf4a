// Package syncclient implements the replica-side puller driving C9: a
// polling worker, in the shape of the teacher's ingest Worker, that pages
// through a remote sender's chunks and writes them into a local Postgres
// replica, resuming from Metadata.LastSyncedID on restart.
package syncclient

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"momo-streamkeeper/internal/metrics"
	"momo-streamkeeper/internal/retry"
	"momo-streamkeeper/internal/store"
)

// Worker pulls one show's chunks from a remote sender into a local Store.
type Worker struct {
	remoteURL string
	showName  string
	chunkSize int64
	db        *store.Store
	client    *http.Client
}

func New(remoteURL, showName string, chunkSize int64, db *store.Store) *Worker {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &Worker{
		remoteURL: remoteURL,
		showName:  showName,
		chunkSize: chunkSize,
		db:        db,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Run polls forever at the given interval until ctx-equivalent stop is
// requested by closing done.
func (w *Worker) Run(pollInterval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Printf("sync: worker started for show %q against %s", w.showName, w.remoteURL)
	w.syncOnce()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.syncOnce()
		}
	}
}

type remoteMetadata struct {
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	AudioFormat    string `json:"audio_format"`
	SampleRate     int    `json:"sample_rate"`
	Version        string `json:"version"`
	PrimingSamples int    `json:"priming_samples"`
	RetentionHours int64  `json:"retention_hours"`
	MinID          int64  `json:"min_id"`
	MaxID          int64  `json:"max_id"`
}

type remoteSegment struct {
	ID              int64  `json:"id"`
	BoundaryOffset  int64  `json:"boundary_offset"`
	DurationSamples int64  `json:"duration_samples"`
	AudioData       []byte `json:"audio_data"`
}

func (w *Worker) syncOnce() {
	meta, err := w.fetchMetadata()
	if err != nil {
		log.Printf("sync: %s: fetch metadata: %v", w.showName, err)
		return
	}

	local, err := w.db.Metadata()
	if err != nil {
		log.Printf("sync: %s: read local metadata: %v", w.showName, err)
		return
	}

	startID := local.LastSyncedID + 1
	if startID < meta.MinID {
		startID = meta.MinID
	}

	if startID > meta.MaxID {
		return // already up to date
	}

	b := retry.NewBackoff()
	currentID := startID
	for currentID <= meta.MaxID {
		endID := currentID + w.chunkSize - 1
		if endID > meta.MaxID {
			endID = meta.MaxID
		}

		segments, err := w.fetchSegments(currentID, endID)
		if err != nil {
			delay := b.Next()
			log.Printf("sync: %s: fetch segments %d-%d failed, retrying in %s: %v", w.showName, currentID, endID, delay, err)
			time.Sleep(delay)
			continue
		}
		b.Reset()

		for _, seg := range segments {
			if err := w.db.WriteReplicaChunk(store.Chunk{
				ID:              seg.ID,
				BoundaryOffset:  seg.BoundaryOffset,
				DurationSamples: seg.DurationSamples,
				Payload:         seg.AudioData,
			}); err != nil {
				log.Printf("sync: %s: write replica chunk %d: %v", w.showName, seg.ID, err)
				continue
			}
			if err := w.db.UpdateLastSyncedID(seg.ID); err != nil {
				log.Printf("sync: %s: persist sync progress: %v", w.showName, err)
			}
		}

		metrics.SyncLag.WithLabelValues(w.showName).Set(float64(meta.MaxID - endID))
		currentID = endID + 1
	}
}

func (w *Worker) fetchMetadata() (*remoteMetadata, error) {
	url := fmt.Sprintf("%s/api/sync/shows/%s/metadata", w.remoteURL, w.showName)
	resp, err := w.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var meta remoteMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (w *Worker) fetchSegments(startID, endID int64) ([]remoteSegment, error) {
	url := fmt.Sprintf("%s/api/sync/shows/%s/segments?start_id=%d&end_id=%d&limit=%d",
		w.remoteURL, w.showName, startID, endID, w.chunkSize)
	resp, err := w.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var segments []remoteSegment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, err
	}
	return segments, nil
}
