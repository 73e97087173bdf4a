package store

import "time"

// PruneOlderThan deletes sections (and their chunks) whose end_timestamp is
// older than retentionHours before now, mirroring the original recorder's
// hour-based cleanup_old_segments_with_params. Sections that have not yet
// been exported are skipped so export never races with deletion.
func (s *Store) PruneOlderThan(showName string, retentionHours int64, now time.Time) (int64, error) {
	if retentionHours <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-time.Duration(retentionHours) * time.Hour).UnixMilli()

	var stale []Section
	err := s.DB.Where("show_name = ? AND end_timestamp_ms > 0 AND end_timestamp_ms < ? AND is_exported_to_remote = ?",
		showName, cutoff, true).Find(&stale).Error
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, sec := range stale {
		if err := s.DB.Where("section_id = ?", sec.ID).Delete(&Chunk{}).Error; err != nil {
			return deleted, err
		}
		if err := s.DB.Delete(&Section{}, sec.ID).Error; err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
