// Package config loads, defaults, and validates the voxgate
// configuration file.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   300,
			Temperature: 0.7,
			EndKeywords: []string{"stop"},
		},
		Delivery: DeliveryConfig{
			Mode: "direct",
		},
		Voice: VoiceConfig{
			RealtimeURL:  "wss://api.openai.com/v1/realtime",
			VoiceProfile: "alloy",
		},
		Guard: GuardConfig{
			// The dedupe window is wider than the provider's own
			// retry horizon; it also absorbs late webhook replays.
			DedupeWindowMinutes: 10,
			MinIntervalSeconds:  1,
			SweepMinutes:        5,
		},
		Session: SessionConfig{
			Store:  "memory",
			DBPath: "voxgate.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
