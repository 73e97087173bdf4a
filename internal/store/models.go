package store

import "time"

// Metadata is the single settings row for a show's database (sqlite sender
// or postgres receiver). It is written once at creation and amended for
// exported/synced-progress bookkeeping thereafter.
type Metadata struct {
	ID             uint   `gorm:"primaryKey"`
	UniqueID       string `gorm:"uniqueIndex;column:unique_id"`
	Version        string `gorm:"column:version"`
	ShowName       string `gorm:"column:show_name"`
	AudioFormat    string `gorm:"column:audio_format"`
	BitrateKbps    int    `gorm:"column:bitrate_kbps"`
	SampleRate     int    `gorm:"column:sample_rate"`
	Channels       int    `gorm:"column:channels"`
	SplitInterval  int    `gorm:"column:split_interval"` // seconds; 0 disables splitting
	PrimingSamples int    `gorm:"column:priming_samples"`
	RetentionHours int64  `gorm:"column:retention_hours"`
	IsRecipient    bool   `gorm:"column:is_recipient"`
	LastSyncedID   int64  `gorm:"column:last_synced_id"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Section is one recording session: a contiguous Connecting->Closing run of
// the Session Controller for a show, bounded by wall-clock start/end.
//
// ID is caller-supplied (the microsecond wall clock at creation), not an
// auto-increment sequence: it is a distinct sort key from StartTimestampMs,
// which instead comes from the stream's HTTP Date header and may lag or
// lead the creation instant by network latency.
type Section struct {
	ID                 int64  `gorm:"primaryKey"`
	ShowName           string `gorm:"column:show_name;index:idx_sections_show_name"`
	StartTimestampMs   int64  `gorm:"column:start_timestamp_ms;index:idx_sections_start_timestamp_ms"`
	EndTimestampMs     int64  `gorm:"column:end_timestamp_ms"`
	IsExportedToRemote bool   `gorm:"column:is_exported_to_remote"`
	CreatedAt          time.Time
}

// Chunk is one gapless segment of encoded audio within a Section.
type Chunk struct {
	ID                    int64  `gorm:"primaryKey;autoIncrement"`
	SectionID             int64  `gorm:"column:section_id;index:idx_chunks_section_id"`
	BoundaryOffset        int64  `gorm:"column:boundary_offset;index:idx_chunks_boundary"`
	DurationSamples       int64  `gorm:"column:duration_samples"`
	TimestampMs           int64  `gorm:"column:timestamp_ms;index:idx_chunks_source_timestamp,priority:2"`
	IsTimestampFromSource bool   `gorm:"column:is_timestamp_from_source;index:idx_chunks_source_timestamp,priority:1"`
	Payload               []byte `gorm:"column:payload"`
	CreatedAt             time.Time
}

func (Metadata) TableName() string { return "metadata" }
func (Section) TableName() string  { return "sections" }
func (Chunk) TableName() string    { return "chunks" }
