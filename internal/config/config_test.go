package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/prayanswer/internal/constants"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Attachments.MaxSizeMB != 20 || cfg.Attachments.JPEGQuality != 70 || cfg.Attachments.ThumbnailPx != 200 {
		t.Errorf("unexpected attachment defaults %+v", cfg.Attachments)
	}
	if cfg.OCR.Command != "tesseract" {
		t.Errorf("unexpected OCR command %q", cfg.OCR.Command)
	}
	if got := cfg.OCRLanguages(); !reflect.DeepEqual(got, []string{"ko-KR", "en-US"}) {
		t.Errorf("unexpected OCR languages %v", got)
	}
	if cfg.Notifications.PollInterval != time.Minute {
		t.Errorf("unexpected poll interval %v", cfg.Notifications.PollInterval)
	}
	if cfg.Widget.MaxItems != 5 {
		t.Errorf("unexpected widget max items %d", cfg.Widget.MaxItems)
	}
	if cfg.CleanupProvider() != "disabled" {
		t.Errorf("cleanup should be disabled by default, got %q", cfg.CleanupProvider())
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Errorf("data dir should be expanded, got %q", cfg.DataDir)
	}
	if cfg.MaxAttachmentBytes() != constants.MaxAttachmentSizeBytes {
		t.Errorf("unexpected max attachment bytes %d", cfg.MaxAttachmentBytes())
	}
}

func TestLoadFile(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
data_dir: `+dataDir+`
timezone: Asia/Seoul
attachments:
  jpeg_quality: 85
ocr:
  languages: en-US
  timeout: 5s
cleanup:
  enabled: true
  model: claude-test
notifications:
  poll_interval: 30s
widget:
  max_items: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != dataDir || cfg.Timezone != "Asia/Seoul" {
		t.Errorf("unexpected top level values %+v", cfg)
	}
	if cfg.Attachments.JPEGQuality != 85 || cfg.Attachments.MaxSizeMB != 20 {
		t.Errorf("unexpected attachments %+v", cfg.Attachments)
	}
	if cfg.OCR.Timeout != 5*time.Second || !reflect.DeepEqual(cfg.OCRLanguages(), []string{"en-US"}) {
		t.Errorf("unexpected ocr %+v", cfg.OCR)
	}
	if cfg.CleanupProvider() != "anthropic" || cfg.Cleanup.Model != "claude-test" {
		t.Errorf("unexpected cleanup %+v", cfg.Cleanup)
	}
	if cfg.Notifications.PollInterval != 30*time.Second || cfg.Widget.MaxItems != 3 {
		t.Errorf("unexpected notifications/widget %+v %+v", cfg.Notifications, cfg.Widget)
	}

	if cfg.DatabasePath() != filepath.Join(dataDir, "prayanswer.db") {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.AttachmentsDir() != filepath.Join(dataDir, "PrayerAttachments") ||
		cfg.LegacyImagesDir() != filepath.Join(dataDir, "PrayerImages") ||
		cfg.WidgetDir() != filepath.Join(dataDir, "group.prayAnswer.widget") ||
		cfg.CalendarDir() != filepath.Join(dataDir, "calendar") {
		t.Error("unexpected derived directories")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "ocr:\n  command: /usr/bin/tesseract\n")
	dataDir := t.TempDir()
	t.Setenv("PRAYANSWER_OCR_COMMAND", "/opt/tesseract")
	t.Setenv("PRAYANSWER_DATA_DIR", dataDir)
	t.Setenv("PRAYANSWER_CLEANUP_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OCR.Command != "/opt/tesseract" {
		t.Errorf("env should override file, got %q", cfg.OCR.Command)
	}
	if cfg.DataDir != dataDir {
		t.Errorf("unexpected data dir %q", cfg.DataDir)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PRAYANSWER_DATA_DIR":                    "data_dir",
		"PRAYANSWER_DEBUG":                       "debug",
		"PRAYANSWER_CLEANUP_BASE_URL":            "cleanup.base_url",
		"PRAYANSWER_NOTIFICATIONS_POLL_INTERVAL": "notifications.poll_interval",
		"PRAYANSWER_CLEANUP_API_KEY":             "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad timezone", "timezone: Mars/Olympus\n", "timezone"},
		{"bad quality", "attachments:\n  jpeg_quality: 101\n", "jpeg_quality"},
		{"bad provider", "cleanup:\n  provider: openai\n", "cleanup.provider"},
		{"too many widget items", "widget:\n  max_items: 9\n", "widget.max_items"},
		{"short poll", "notifications:\n  poll_interval: 10ms\n", "poll_interval"},
		{"negative log rotation", "log:\n  max_backups: -1\n", "log rotation"},
		{"bad yaml", "ocr: [\n", "failed to load config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLogRotationFromEnv(t *testing.T) {
	t.Setenv("PRAYANSWER_DATA_DIR", t.TempDir())
	t.Setenv("PRAYANSWER_LOG_MAX_SIZE_MB", "5")

	cfg, err := Load(writeConfig(t, "log:\n  max_age_days: 7\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.MaxSizeMB != 5 || cfg.Log.MaxAgeDays != 7 || cfg.Log.MaxBackups != 0 {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}
