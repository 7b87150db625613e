package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env string

	DatabaseURL          string
	ServiceDirectoryPath string

	GoogleAPIKey               string
	GoogleCloudCredentialsJSON string
	SpeechLanguage             string
	DefaultVoice               string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	WebhookBaseURL   string

	ResultWebhookURL string
	HTTPListenAddr   string

	MaxTurns       int
	DialTimeout    time.Duration
	TurnTimeout    time.Duration
	SessionTimeout time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be positive, got %d", c.MaxTurns)
	}
	if c.DialTimeout <= 0 || c.TurnTimeout <= 0 || c.SessionTimeout <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT, TURN_TIMEOUT and SESSION_TIMEOUT must be positive")
	}
	if c.partiallyConfiguredTwilio() {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and WEBHOOK_BASE_URL must be set together for live calling")
	}
	if c.LiveCallingEnabled() && c.GoogleCloudCredentialsJSON == "" {
		return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when live calling is configured")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "SERVICE_DIRECTORY_PATH", value: c.ServiceDirectoryPath},
		{name: "SPEECH_LANGUAGE", value: c.SpeechLanguage},
		{name: "DEFAULT_VOICE", value: c.DefaultVoice},
	}
}

// LiveCallingEnabled reports whether the telephony provider is fully
// configured. When it is not, the simulated call controller and the
// passthrough speech bridge are wired instead.
func (c *Config) LiveCallingEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != "" && c.WebhookBaseURL != ""
}

func (c *Config) partiallyConfiguredTwilio() bool {
	any := c.TwilioAccountSID != "" || c.TwilioAuthToken != "" || c.TwilioFromNumber != "" || c.WebhookBaseURL != ""
	return any && !c.LiveCallingEnabled()
}

// GeminiEnabled reports whether the LLM-backed dialogue engine can be used.
// Without an API key the rule-based engine takes over.
func (c *Config) GeminiEnabled() bool {
	return c.GoogleAPIKey != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
