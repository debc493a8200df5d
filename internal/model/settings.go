package model

// Persisted setting keys.
const (
	SettingAutoBackupEnabled    = "autoBackupEnabled"
	SettingAutoBackupInterval   = "autoBackupFrequency"
	SettingLastAutoBackup       = "autoBackupLastTime"
	SettingNotificationEnabled  = "notificationEnabled"
	SettingReminderTime         = "notificationReminderTime"
	SettingNotificationTriggers = "notificationTriggers"
)

// IsBookkeepingSetting reports whether key records scheduler state rather
// than a user preference. Bookkeeping keys are not carried by backups.
func IsBookkeepingSetting(key string) bool {
	return key == SettingLastAutoBackup || key == SettingNotificationTriggers
}
