package attachments

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/storage"
)

type MigrationResult struct {
	Skipped  bool
	Migrated int
	Failed   int
}

// LegacyMigrator moves single legacy images into the attachment list. It runs
// once: the completion flag is set after a pass even if some records failed.
type LegacyMigrator struct {
	Prayers     storage.PrayerStore
	Settings    storage.SettingsStore
	Attachments *Store
	LegacyDir   string
}

func (m *LegacyMigrator) Done() (bool, error) {
	v, ok, err := m.Settings.GetSetting(constants.SettingAttachmentMigrationDone)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

func (m *LegacyMigrator) Run() (MigrationResult, error) {
	done, err := m.Done()
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to read migration flag: %w", err)
	}
	if done {
		return MigrationResult{Skipped: true}, nil
	}

	prayers, err := m.Prayers.ListPrayers(storage.PrayerFilter{})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to list prayers: %w", err)
	}

	var result MigrationResult
	for _, p := range prayers {
		if p.ImageFileName == "" || len(p.Attachments) > 0 {
			continue
		}
		if err := m.migrateOne(p); err != nil {
			logger.Warn("Legacy image migration failed", "prayer", p.ID, "image", p.ImageFileName, "error", err)
			result.Failed++
			continue
		}
		result.Migrated++
	}

	if err := m.Settings.SetSetting(constants.SettingAttachmentMigrationDone, "true"); err != nil {
		return result, fmt.Errorf("failed to set migration flag: %w", err)
	}
	logger.Info("Legacy image migration finished", "migrated", result.Migrated, "failed", result.Failed)
	return result, nil
}

func (m *LegacyMigrator) migrateOne(p models.Prayer) error {
	src := filepath.Join(m.LegacyDir, filepath.Base(p.ImageFileName))
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	if err := m.Attachments.ensureDir(); err != nil {
		return err
	}
	fileName := uuid.New().String() + "." + models.AttachmentImage.Extension()
	if err := writeAtomic(m.Attachments.path(fileName), data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	p.Attachments = []models.Attachment{{
		ID:            uuid.New().String(),
		PrayerID:      p.ID,
		FileName:      fileName,
		OriginalName:  "Image.jpg",
		Type:          models.AttachmentImage,
		FileSizeBytes: int64(len(data)),
		Order:         0,
		CreatedAt:     m.Attachments.now(),
	}}
	if err := m.Prayers.UpdatePrayer(p); err != nil {
		_ = m.Attachments.Delete(fileName)
		return err
	}
	return nil
}
