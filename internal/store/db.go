// Package store implements C6: the embedded relational log of Metadata,
// Sections and Chunks, backed by SQLite on the sender side and Postgres on
// the receiver side through a single gorm.DB handle.
package store

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ExpectedVersion is the schema version stamped into every new database.
const ExpectedVersion = "4"

const uniqueIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Store wraps a single show database, either the sender's SQLite file or
// the receiver's per-show Postgres database.
type Store struct {
	DB          *gorm.DB
	IsRecipient bool
}

// OpenSQLite opens (creating if absent) the sender-side database for one
// show. Each show gets its own file under dataDir.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return bootstrap(db, false)
}

// OpenPostgres opens one show's receiver-side database, name. Several shows
// share one Postgres instance by each using a database of its own.
func OpenPostgres(host, port, user, password, name string) (*Store, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, name, port)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return bootstrap(db, true)
}

func bootstrap(db *gorm.DB, isRecipient bool) (*Store, error) {
	if err := db.AutoMigrate(&Metadata{}, &Section{}, &Chunk{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	var count int64
	db.Model(&Metadata{}).Count(&count)
	if count == 0 {
		meta := Metadata{
			UniqueID:    generateUniqueID(),
			Version:     ExpectedVersion,
			IsRecipient: isRecipient,
		}
		if err := db.Create(&meta).Error; err != nil {
			return nil, fmt.Errorf("seed metadata: %w", err)
		}
	} else {
		var meta Metadata
		if err := db.First(&meta).Error; err == nil && meta.Version != ExpectedVersion {
			log.Printf("⚠️  database schema version %q does not match expected %q", meta.Version, ExpectedVersion)
		}
	}

	return &Store{DB: db, IsRecipient: isRecipient}, nil
}

// Metadata returns the singleton settings row.
func (s *Store) Metadata() (Metadata, error) {
	var m Metadata
	err := s.DB.First(&m).Error
	return m, err
}

// InitShow stamps show-specific settings into the Metadata row the first
// time a Session Controller runs against a fresh database.
func (s *Store) InitShow(showName, audioFormat string, sampleRate, channels, primingSamples int, retentionHours int64) error {
	return s.InitShowFull(showName, audioFormat, sampleRate, channels, 0, 0, primingSamples, retentionHours)
}

// InitShowFull is InitShow plus the bitrate and split_interval fields I5
// also requires to be immutable once set. bitrateKbps is meaningless for
// WAV and left at 0.
// Once set, the row is left untouched; a call whose format, sample rate or
// bitrate differs from the stored values returns an error.
func (s *Store) InitShowFull(showName, audioFormat string, sampleRate, channels, bitrateKbps, splitIntervalSeconds, primingSamples int, retentionHours int64) error {
	meta, err := s.Metadata()
	if err != nil {
		return err
	}
	if meta.AudioFormat != "" {
		if meta.AudioFormat != audioFormat || meta.SampleRate != sampleRate || meta.BitrateKbps != bitrateKbps {
			return fmt.Errorf("metadata mismatch: database has %s/%dHz/%dkbps, got %s/%dHz/%dkbps",
				meta.AudioFormat, meta.SampleRate, meta.BitrateKbps, audioFormat, sampleRate, bitrateKbps)
		}
		return nil
	}
	return s.DB.Model(&Metadata{}).Where("1 = 1").Updates(map[string]interface{}{
		"show_name":       showName,
		"audio_format":    audioFormat,
		"sample_rate":     sampleRate,
		"channels":        channels,
		"bitrate_kbps":    bitrateKbps,
		"split_interval":  splitIntervalSeconds,
		"priming_samples": primingSamples,
		"retention_hours": retentionHours,
	}).Error
}

func generateUniqueID() string {
	suffix := make([]byte, 12)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(uniqueIDAlphabet))))
		if err != nil {
			suffix[i] = uniqueIDAlphabet[0]
			continue
		}
		suffix[i] = uniqueIDAlphabet[n.Int64()]
	}
	return "db_" + string(suffix)
}
