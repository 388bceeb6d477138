package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, ValidationIssue{
					Path:    fieldPath(fe),
					Message: fmt.Sprintf("failed %q constraint, got %v", fe.Tag(), fe.Value()),
				})
			}
		} else {
			issues = append(issues, ValidationIssue{Path: "config", Message: err.Error()})
		}
	}

	if cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.apiKey",
			Message: "required (set it or VOXGATE_OPENAI_API_KEY)",
		})
	}

	// Delivery modes are mutually exclusive and each has its own
	// required credentials.
	switch cfg.Delivery.Mode {
	case "direct":
		if cfg.Delivery.Twilio.AccountSID == "" {
			issues = append(issues, ValidationIssue{Path: "delivery.twilio.accountSid", Message: "required in direct mode"})
		}
		if cfg.Delivery.Twilio.AuthToken == "" {
			issues = append(issues, ValidationIssue{Path: "delivery.twilio.authToken", Message: "required in direct mode"})
		}
		if cfg.Delivery.Twilio.FromNumber == "" {
			issues = append(issues, ValidationIssue{Path: "delivery.twilio.fromNumber", Message: "required in direct mode"})
		}
	case "relay":
		if cfg.Delivery.RelayURL == "" {
			issues = append(issues, ValidationIssue{Path: "delivery.relayUrl", Message: "required in relay mode"})
		}
	}

	if cfg.Session.Store == "sqlite" && cfg.Session.DBPath == "" {
		issues = append(issues, ValidationIssue{Path: "session.dbPath", Message: "required when session.store is sqlite"})
	}

	if cfg.Voice.Enabled && cfg.Server.PublicHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.publicHost",
			Message: "required when voice is enabled so the provider can reach the media stream",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}

// fieldPath converts a validator namespace like "Config.Delivery.Mode"
// into the yaml-ish "delivery.mode" form used in error output.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
