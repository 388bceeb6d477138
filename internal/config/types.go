package config

// Config is the root configuration for voxgate.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Delivery DeliveryConfig `yaml:"delivery,omitempty"`
	Voice    VoiceConfig    `yaml:"voice,omitempty"`
	Guard    GuardConfig    `yaml:"guard,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	// PublicHost is the externally reachable host name used when
	// building the media stream URL handed to the telephony provider.
	PublicHost string `yaml:"publicHost,omitempty"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty" validate:"omitempty,url"`
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
	// AssistantID switches completions to the hosted stateful-thread
	// flavor. Empty means local-history completions.
	AssistantID  string   `yaml:"assistantId,omitempty"`
	MaxTokens    int      `yaml:"maxTokens,omitempty" validate:"gte=0"`
	Temperature  float32  `yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	SystemPrompt string   `yaml:"systemPrompt,omitempty"`
	EndKeywords  []string `yaml:"endKeywords,omitempty"`
}

// DeliveryConfig selects how outbound replies leave the gateway.
// Exactly one mode is active at a time.
type DeliveryConfig struct {
	Mode     string       `yaml:"mode,omitempty" validate:"omitempty,oneof=direct relay"`
	Twilio   TwilioConfig `yaml:"twilio,omitempty"`
	RelayURL string       `yaml:"relayUrl,omitempty" validate:"omitempty,url"`
}

// TwilioConfig holds credentials for direct-mode REST delivery.
type TwilioConfig struct {
	AccountSID string `yaml:"accountSid,omitempty"`
	AuthToken  string `yaml:"authToken,omitempty"`
	FromNumber string `yaml:"fromNumber,omitempty"`
}

// VoiceConfig configures the realtime voice bridge.
type VoiceConfig struct {
	Enabled      bool   `yaml:"enabled,omitempty"`
	RealtimeURL  string `yaml:"realtimeUrl,omitempty" validate:"omitempty,url"`
	VoiceProfile string `yaml:"voiceProfile,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
	Greeting     string `yaml:"greeting,omitempty"`
}

// GuardConfig tunes deduplication and per-sender rate limiting.
type GuardConfig struct {
	DedupeWindowMinutes int `yaml:"dedupeWindowMinutes,omitempty" validate:"gte=0"`
	MinIntervalSeconds  int `yaml:"minIntervalSeconds,omitempty" validate:"gte=0"`
	SweepMinutes        int `yaml:"sweepMinutes,omitempty" validate:"gte=0"`
}

// SessionConfig selects the conversation store backing.
type SessionConfig struct {
	Store  string `yaml:"store,omitempty" validate:"omitempty,oneof=memory sqlite"`
	DBPath string `yaml:"dbPath,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	Style string `yaml:"style,omitempty" validate:"omitempty,oneof=pretty json"`
}
