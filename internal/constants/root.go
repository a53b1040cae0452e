package constants

const (
	AppName           = "prayanswer"
	Version           = "v0.3.0"
	DefaultConfigPath = "~/.config/prayanswer/config.yaml"
	DefaultDataDir    = "~/.local/share/prayanswer"
	EnvPrefix         = "PRAYANSWER_"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	DatabaseFileName = "prayanswer.db"
	LogFileName      = "prayanswer.log"

	// Keyring
	KeyringService      = AppName
	KeyringCleanupUser  = "cleanup-api-key"
	CleanupAPIKeyEnvVar = "PRAYANSWER_CLEANUP_API_KEY"
)

// Directory names under the data dir
const (
	AttachmentsDirName  = "PrayerAttachments"
	LegacyImagesDirName = "PrayerImages"
	WidgetGroupDirName  = "group.prayAnswer.widget"
	CalendarDirName     = "calendar"
)
