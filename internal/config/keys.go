package config

import "os"

// SettingSource represents where a sensitive setting comes from.
type SettingSource string

const (
	SettingSourceEnv    SettingSource = "env"
	SettingSourceConfig SettingSource = "config"
	SettingSourceNone   SettingSource = "none"
)

// SettingStatus represents the status of one sensitive setting.
type SettingStatus struct {
	Name   string        `json:"name"`
	Source SettingSource `json:"source"`
	IsSet  bool          `json:"is_set"`
	Masked string        `json:"masked,omitempty"` // e.g., "smt...ord"
}

// CheckMailSettings returns the status of the SMTP settings the contact
// form needs. All of them must be set for mail delivery to be enabled.
func CheckMailSettings(cfg *Config) []SettingStatus {
	return []SettingStatus{
		checkSetting("SMTP Host", cfg.Contact.SMTPHost, "WEBJURIDICO_CONTACT_SMTP_HOST"),
		checkSetting("SMTP User", cfg.Contact.SMTPUser, "WEBJURIDICO_CONTACT_SMTP_USER"),
		checkSetting("SMTP Password", cfg.Contact.SMTPPass, "WEBJURIDICO_CONTACT_SMTP_PASS"),
		checkSetting("Contact To", cfg.Contact.ToEmail, "WEBJURIDICO_CONTACT_TO_EMAIL"),
		checkSetting("Contact From", cfg.Contact.FromEmail, "WEBJURIDICO_CONTACT_FROM_EMAIL"),
	}
}

// checkSetting checks if a setting is set and where it came from.
func checkSetting(name, value, envVar string) SettingStatus {
	status := SettingStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SettingSourceEnv
		} else {
			status.Source = SettingSourceConfig
		}
		status.Masked = maskValue(value)
	} else {
		status.Source = SettingSourceNone
	}

	return status
}

// maskValue masks a sensitive value for display, showing only first 3 and
// last 3 chars.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}
