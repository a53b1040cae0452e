package constants

const (
	MaxContentLength = 2000
	MaxTitleLength   = 100

	// Attachment limits
	MaxAttachmentSizeBytes = 20 * 1024 * 1024
	DefaultJPEGQuality     = 70
	ThumbnailSize          = 200

	// Reminder defaults
	DefaultReminderHour    = 9
	DefaultReminderMinute  = 0
	MaxRepeatNotifications = 30

	// MaxPendingNotifications mirrors the platform cap on pending local notifications
	MaxPendingNotifications = 60

	// Widget limits
	WidgetMaxItems         = 5
	WidgetTitleMaxLength   = 50
	WidgetContentMaxLength = 100

	// Settings keys
	SettingAttachmentMigrationDone = "attachment_migration_v1"
	SettingNotificationPermission  = "notification_permission"
	SettingCalendarPermission      = "calendar_permission"
	SettingCleanupUserDisabled     = "cleanup_user_disabled"
	SettingSpeechPermission        = "speech_permission"
	SettingMicrophonePermission    = "microphone_permission"

	// OCR batch separator
	OCRBatchSeparator = "\n\n---\n\n"
)
