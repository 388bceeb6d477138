package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Delivery.Twilio.AccountSID = expandEnvVars(cfg.Delivery.Twilio.AccountSID)
	cfg.Delivery.Twilio.AuthToken = expandEnvVars(cfg.Delivery.Twilio.AuthToken)
	cfg.Delivery.RelayURL = expandEnvVars(cfg.Delivery.RelayURL)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults. Needed
// after unmarshal because YAML overwrites whole sections.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 300
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if len(cfg.LLM.EndKeywords) == 0 {
		cfg.LLM.EndKeywords = []string{"stop"}
	}
	if cfg.Delivery.Mode == "" {
		cfg.Delivery.Mode = "direct"
	}
	if cfg.Voice.RealtimeURL == "" {
		cfg.Voice.RealtimeURL = "wss://api.openai.com/v1/realtime"
	}
	if cfg.Voice.VoiceProfile == "" {
		cfg.Voice.VoiceProfile = "alloy"
	}
	if cfg.Guard.DedupeWindowMinutes == 0 {
		cfg.Guard.DedupeWindowMinutes = 10
	}
	if cfg.Guard.MinIntervalSeconds == 0 {
		cfg.Guard.MinIntervalSeconds = 1
	}
	if cfg.Guard.SweepMinutes == 0 {
		cfg.Guard.SweepMinutes = 5
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Session.DBPath == "" {
		cfg.Session.DBPath = "voxgate.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = "pretty"
	}
}

// applyEnvOverrides applies VOXGATE_* environment variables on top of
// file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXGATE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VOXGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOXGATE_PUBLIC_HOST"); v != "" {
		cfg.Server.PublicHost = v
	}
	if v := os.Getenv("VOXGATE_OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("VOXGATE_OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("VOXGATE_ASSISTANT_ID"); v != "" {
		cfg.LLM.AssistantID = v
	}
	if v := os.Getenv("VOXGATE_DELIVERY_MODE"); v != "" {
		cfg.Delivery.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("VOXGATE_TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Delivery.Twilio.AccountSID = v
	}
	if v := os.Getenv("VOXGATE_TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Delivery.Twilio.AuthToken = v
	}
	if v := os.Getenv("VOXGATE_TWILIO_FROM_NUMBER"); v != "" {
		cfg.Delivery.Twilio.FromNumber = v
	}
	if v := os.Getenv("VOXGATE_RELAY_URL"); v != "" {
		cfg.Delivery.RelayURL = v
	}
	if v := os.Getenv("VOXGATE_DB_PATH"); v != "" {
		cfg.Session.DBPath = v
	}
	if v := os.Getenv("VOXGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
