package config

import "os"

// SecretSource represents where a secret comes from.
type SecretSource string

const (
	SourceEnv    SecretSource = "env"
	SourceConfig SecretSource = "config"
	SourceNone   SecretSource = "none"
)

// SecretStatus represents the status of a configured secret.
type SecretStatus struct {
	Name   string       `json:"name"`
	Source SecretSource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "s3c...t42"
}

// CheckSecrets returns the status of every secret the configuration holds.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret("Redis password", cfg.Cache.Redis.Password, EnvPrefix+"_CACHE_REDIS_PASSWORD"),
	}
}

// checkSecret checks if a secret is set and where it came from.
func checkSecret(name, value, envVar string) SecretStatus {
	status := SecretStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SourceEnv
		} else {
			status.Source = SourceConfig
		}
		status.Masked = maskSecret(value)
	} else {
		status.Source = SourceNone
	}

	return status
}

// maskSecret masks a secret for display, showing only first 3 and last 3 chars.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
