package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.LLM.APIKey = "sk-test"
	cfg.Delivery.Twilio = TwilioConfig{
		AccountSID: "ACxxxx",
		AuthToken:  "token",
		FromNumber: "+15550000000",
	}
	return cfg
}

func issuePaths(issues []ValidationIssue) []string {
	paths := make([]string, len(issues))
	for i, is := range issues {
		paths[i] = is.Path
	}
	return paths
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	assert.Contains(t, issuePaths(Validate(&cfg)), "llm.apiKey")
}

func TestValidateDirectModeRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Delivery.Twilio = TwilioConfig{}

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "delivery.twilio.accountSid")
	assert.Contains(t, paths, "delivery.twilio.authToken")
	assert.Contains(t, paths, "delivery.twilio.fromNumber")
}

func TestValidateRelayModeRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Delivery.Mode = "relay"
	cfg.Delivery.Twilio = TwilioConfig{}
	cfg.Delivery.RelayURL = ""

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "delivery.relayUrl")
	assert.NotContains(t, paths, "delivery.twilio.accountSid",
		"relay mode must not demand direct-mode credentials")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Delivery.Mode = "carrier-pigeon"

	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Contains(t, issuePaths(issues), "delivery.mode")
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000
	assert.Contains(t, issuePaths(Validate(&cfg)), "server.port")
}

func TestValidateVoiceNeedsPublicHost(t *testing.T) {
	cfg := validConfig()
	cfg.Voice.Enabled = true
	cfg.Server.PublicHost = ""
	assert.Contains(t, issuePaths(Validate(&cfg)), "server.publicHost")

	cfg.Server.PublicHost = "gateway.example.com"
	assert.Empty(t, Validate(&cfg))
}

func TestValidateLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assert.Contains(t, issuePaths(Validate(&cfg)), "logging.level")
}
