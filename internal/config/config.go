// Package config loads prayanswer settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/utils"
)

const maxConfigFileSize = 1024 * 1024

type Config struct {
	DataDir       string              `koanf:"data_dir"`
	Timezone      string              `koanf:"timezone"`
	Debug         bool                `koanf:"debug"`
	Attachments   AttachmentsConfig   `koanf:"attachments"`
	OCR           OCRConfig           `koanf:"ocr"`
	Cleanup       CleanupConfig       `koanf:"cleanup"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Widget        WidgetConfig        `koanf:"widget"`
	Speech        SpeechConfig        `koanf:"speech"`
	Log           LogConfig           `koanf:"log"`
}

type AttachmentsConfig struct {
	MaxSizeMB   int    `koanf:"max_size_mb"`
	JPEGQuality int    `koanf:"jpeg_quality"`
	ThumbnailPx int    `koanf:"thumbnail_px"`
	PDFCommand  string `koanf:"pdf_command"`
}

// OCRConfig.Languages is a comma separated list of recognition hints, preferred first.
type OCRConfig struct {
	Command   string        `koanf:"command"`
	Languages string        `koanf:"languages"`
	Timeout   time.Duration `koanf:"timeout"`
}

type CleanupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Provider string        `koanf:"provider"`
	Model    string        `koanf:"model"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
}

type NotificationsConfig struct {
	PollInterval   time.Duration `koanf:"poll_interval"`
	TrayIdentifier string        `koanf:"tray_identifier"`
}

type WidgetConfig struct {
	MaxItems int `koanf:"max_items"`
}

// LogConfig tunes log file rotation. Zero values use the logger defaults.
type LogConfig struct {
	MaxSizeMB  int `koanf:"max_size_mb"`
	MaxBackups int `koanf:"max_backups"`
	MaxAgeDays int `koanf:"max_age_days"`
}

type SpeechConfig struct {
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// topLevelKeys are the keys that have no section, so their env names keep
// the underscore.
var topLevelKeys = map[string]bool{
	"data_dir": true,
	"timezone": true,
	"debug":    true,
}

// Load reads configPath (the default path when empty), then applies
// PRAYANSWER_ environment overrides and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PRAYANSWER_OCR_COMMAND, PRAYANSWER_DATA_DIR, ...)
//  2. YAML config file (~/.config/prayanswer/config.yaml)
//  3. Hardcoded defaults
//
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = constants.DefaultConfigPath
	}
	path, err := utils.ExpandPath(configPath)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// PRAYANSWER_CLEANUP_MODEL -> cleanup.model, PRAYANSWER_DATA_DIR -> data_dir
	if err := k.Load(env.Provider(constants.EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	cfg.DataDir, err = utils.ExpandPath(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, constants.EnvPrefix))
	if lower == "cleanup_api_key" {
		// secret, read through the keyring lookup instead
		return ""
	}
	if topLevelKeys[lower] {
		return lower
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = constants.DefaultDataDir
	}
	if cfg.Attachments.MaxSizeMB == 0 {
		cfg.Attachments.MaxSizeMB = constants.MaxAttachmentSizeBytes / (1024 * 1024)
	}
	if cfg.Attachments.JPEGQuality == 0 {
		cfg.Attachments.JPEGQuality = constants.DefaultJPEGQuality
	}
	if cfg.Attachments.ThumbnailPx == 0 {
		cfg.Attachments.ThumbnailPx = constants.ThumbnailSize
	}
	if cfg.Attachments.PDFCommand == "" {
		cfg.Attachments.PDFCommand = "pdftoppm"
	}
	if cfg.OCR.Command == "" {
		cfg.OCR.Command = "tesseract"
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = "ko-KR,en-US"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 60 * time.Second
	}
	if cfg.Cleanup.Provider == "" {
		cfg.Cleanup.Provider = "anthropic"
	}
	if cfg.Cleanup.Timeout == 0 {
		cfg.Cleanup.Timeout = 30 * time.Second
	}
	if cfg.Notifications.PollInterval == 0 {
		cfg.Notifications.PollInterval = time.Minute
	}
	if cfg.Notifications.TrayIdentifier == "" {
		cfg.Notifications.TrayIdentifier = constants.TrayAppIdentifier
	}
	if cfg.Widget.MaxItems == 0 {
		cfg.Widget.MaxItems = constants.WidgetMaxItems
	}
}

func (c *Config) Validate() error {
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone %q", c.Timezone)
	}
	if c.Attachments.MaxSizeMB < 1 {
		return fmt.Errorf("attachments.max_size_mb must be positive")
	}
	if c.Attachments.JPEGQuality < 1 || c.Attachments.JPEGQuality > 100 {
		return fmt.Errorf("attachments.jpeg_quality must be between 1 and 100, got %d", c.Attachments.JPEGQuality)
	}
	if c.Attachments.ThumbnailPx < 1 {
		return fmt.Errorf("attachments.thumbnail_px must be positive")
	}
	switch c.Cleanup.Provider {
	case "anthropic", "disabled":
	default:
		return fmt.Errorf("unknown cleanup.provider %q", c.Cleanup.Provider)
	}
	if c.Notifications.PollInterval < time.Second {
		return fmt.Errorf("notifications.poll_interval must be at least 1s")
	}
	if c.Widget.MaxItems < 1 || c.Widget.MaxItems > constants.WidgetMaxItems {
		return fmt.Errorf("widget.max_items must be between 1 and %d", constants.WidgetMaxItems)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings cannot be negative")
	}
	return nil
}

// CleanupProvider is the provider to build, "disabled" unless cleanup is enabled.
func (c *Config) CleanupProvider() string {
	if !c.Cleanup.Enabled {
		return "disabled"
	}
	return c.Cleanup.Provider
}

// OCRLanguages splits the configured recognition hints.
func (c *Config) OCRLanguages() []string {
	var langs []string
	for _, l := range strings.Split(c.OCR.Languages, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

func (c *Config) MaxAttachmentBytes() int64 {
	return int64(c.Attachments.MaxSizeMB) * 1024 * 1024
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, constants.DatabaseFileName)
}

func (c *Config) AttachmentsDir() string {
	return filepath.Join(c.DataDir, constants.AttachmentsDirName)
}

func (c *Config) LegacyImagesDir() string {
	return filepath.Join(c.DataDir, constants.LegacyImagesDirName)
}

func (c *Config) WidgetDir() string {
	return filepath.Join(c.DataDir, constants.WidgetGroupDirName)
}

func (c *Config) CalendarDir() string {
	return filepath.Join(c.DataDir, constants.CalendarDirName)
}
