package store

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// roleGuard enforces invariant I4 (a database is either a sender or a
// receiver for its whole lifetime) by checking IsRecipient exactly once per
// process on the first write, rather than on every call.
type roleGuard struct {
	once sync.Once
	err  error
}

var writeGuards sync.Map // *Store -> *roleGuard

func guardFor(s *Store) *roleGuard {
	g, _ := writeGuards.LoadOrStore(s, &roleGuard{})
	return g.(*roleGuard)
}

func (s *Store) checkWritable(wantRecipient bool) error {
	g := guardFor(s)
	g.once.Do(func() {
		if s.IsRecipient != wantRecipient {
			g.err = fmt.Errorf("store role mismatch: is_recipient=%v but operation requires %v", s.IsRecipient, wantRecipient)
		}
	})
	return g.err
}

// OpenSection starts a new recording section with sectionID fixed by the
// caller (the microsecond wall clock at session creation, per C5's
// session-wide bookkeeping) and startTimestampMs taken from the stream's
// HTTP Date header. Idempotent for an existing id with the same
// startTimestampMs; returns the existing row rather than erroring, since a
// reconnect after a brief drop may re-open the same section.
func (s *Store) OpenSection(sectionID int64, showName string, startTimestampMs int64) (*Section, error) {
	var existing Section
	err := s.DB.First(&existing, sectionID).Error
	switch {
	case err == nil:
		if existing.StartTimestampMs != startTimestampMs {
			return nil, fmt.Errorf("section %d already open with start_timestamp_ms=%d, got %d", sectionID, existing.StartTimestampMs, startTimestampMs)
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sec := Section{ID: sectionID, ShowName: showName, StartTimestampMs: startTimestampMs}
		if err := s.DB.Create(&sec).Error; err != nil {
			return nil, err
		}
		return &sec, nil
	default:
		return nil, err
	}
}

// CloseSection stamps a section's end timestamp when the Session Controller
// leaves the Streaming state.
func (s *Store) CloseSection(sectionID int64, endTimestampMs int64) error {
	return s.DB.Model(&Section{}).Where("id = ?", sectionID).Update("end_timestamp_ms", endTimestampMs).Error
}

// AppendChunk stores one gapless chunk produced by C5. Only the recording
// (sender) side calls this. timestampMs and isTimestampFromSource are
// computed by the Chunker per §4.5's algorithm.
func (s *Store) AppendChunk(sectionID int64, boundaryOffset int64, durationSamples int64, timestampMs int64, isTimestampFromSource bool, payload []byte) (*Chunk, error) {
	if err := s.checkWritable(false); err != nil {
		return nil, err
	}
	c := Chunk{
		SectionID:             sectionID,
		BoundaryOffset:        boundaryOffset,
		DurationSamples:       durationSamples,
		TimestampMs:           timestampMs,
		IsTimestampFromSource: isTimestampFromSource,
		Payload:               payload,
	}
	if err := s.DB.Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteReplicaChunk stores a chunk pulled from a remote sender. Only the
// receiver (replica) side calls this, and it preserves the source ID so
// sync resume (max(last_synced_id)+1) stays stable across restarts.
func (s *Store) WriteReplicaChunk(c Chunk) error {
	if err := s.checkWritable(true); err != nil {
		return err
	}
	return s.DB.Save(&c).Error
}

// ListChunks returns every chunk of a section in boundary order, the order
// required to reconstruct gapless audio (invariant I3).
func (s *Store) ListChunks(sectionID int64) ([]Chunk, error) {
	var chunks []Chunk
	err := s.DB.Where("section_id = ?", sectionID).Order("boundary_offset asc").Find(&chunks).Error
	return chunks, err
}

// ListSections returns sections for a show, most recent first.
func (s *Store) ListSections(showName string) ([]Section, error) {
	var sections []Section
	err := s.DB.Where("show_name = ?", showName).Order("start_timestamp_ms desc").Find(&sections).Error
	return sections, err
}

// GetSection fetches a single section by ID.
func (s *Store) GetSection(id int64) (*Section, error) {
	var sec Section
	if err := s.DB.First(&sec, id).Error; err != nil {
		return nil, err
	}
	return &sec, nil
}

// MarkExported flags a section as pushed to the remote export target
// (SFTP/S3), so the retention pruner can skip re-uploading it.
func (s *Store) MarkExported(sectionID int64) error {
	return s.DB.Model(&Section{}).Where("id = ?", sectionID).Update("is_exported_to_remote", true).Error
}

// ChunksAfter returns chunks with ID greater than afterID, up to limit rows,
// ordered by ID. This backs the C9 sync source's paged replication feed.
func (s *Store) ChunksAfter(afterID int64, limit int64) ([]Chunk, error) {
	var chunks []Chunk
	err := s.DB.Where("id > ?", afterID).Order("id asc").Limit(int(limit)).Find(&chunks).Error
	return chunks, err
}

// ChunksInRange returns chunks with id in [startID, endID], up to limit
// rows, ordered by id. endID <= 0 means unbounded above, matching §4.9(a)'s
// inclusive (start_id, end_id, limit) paging contract.
func (s *Store) ChunksInRange(startID, endID, limit int64) ([]Chunk, error) {
	q := s.DB.Where("id >= ?", startID)
	if endID > 0 {
		q = q.Where("id <= ?", endID)
	}
	var chunks []Chunk
	err := q.Order("id asc").Limit(int(limit)).Find(&chunks).Error
	return chunks, err
}

// MaxChunkID returns the highest chunk ID currently stored, or 0 if empty.
func (s *Store) MaxChunkID() (int64, error) {
	var maxID int64
	err := s.DB.Model(&Chunk{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error
	return maxID, err
}

// MinChunkID returns the lowest chunk ID currently stored, or 0 if empty.
func (s *Store) MinChunkID() (int64, error) {
	var minID int64
	err := s.DB.Model(&Chunk{}).Select("COALESCE(MIN(id), 0)").Scan(&minID).Error
	return minID, err
}

// UpdateLastSyncedID persists sync progress after a successful batch write,
// so a restarted replica client resumes instead of re-pulling everything.
func (s *Store) UpdateLastSyncedID(id int64) error {
	return s.DB.Model(&Metadata{}).Where("1 = 1").Update("last_synced_id", id).Error
}
