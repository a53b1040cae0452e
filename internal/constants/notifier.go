package constants

const (
	// TrayAppIdentifier is the config directory name of the desktop tray app that renders notifications
	TrayAppIdentifier        = "com.julianstephens.prayanswer-tray"
	TrayExecutablePrefix     = "prayanswer-tray"
	NotifierLockfileName     = "prayanswer-tray.lock"
	NotificationDurationMs   = 8000
	NotificationSecretHeader = "X-Prayanswer-Secret"
)
