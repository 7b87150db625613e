package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/vehiclecare/voicebook/internal/config"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	DatabaseURL                string        `env:"DATABASE_URL,required"`
	ServiceDirectoryPath       string        `env:"SERVICE_DIRECTORY_PATH,required"`
	GoogleAPIKey               string        `env:"GOOGLE_API_KEY"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	SpeechLanguage             string        `env:"SPEECH_LANGUAGE" envDefault:"en-US"`
	DefaultVoice               string        `env:"DEFAULT_VOICE" envDefault:"en-US-Neural2-F"`
	TwilioAccountSID           string        `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken            string        `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber           string        `env:"TWILIO_FROM_NUMBER"`
	WebhookBaseURL             string        `env:"WEBHOOK_BASE_URL"`
	ResultWebhookURL           string        `env:"RESULT_WEBHOOK_URL"`
	HTTPListenAddr             string        `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	MaxTurns                   int           `env:"MAX_TURNS" envDefault:"12"`
	DialTimeout                time.Duration `env:"DIAL_TIMEOUT" envDefault:"30s"`
	TurnTimeout                time.Duration `env:"TURN_TIMEOUT" envDefault:"15s"`
	SessionTimeout             time.Duration `env:"SESSION_TIMEOUT" envDefault:"5m"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DatabaseURL:                raw.DatabaseURL,
		ServiceDirectoryPath:       raw.ServiceDirectoryPath,
		GoogleAPIKey:               raw.GoogleAPIKey,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		SpeechLanguage:             raw.SpeechLanguage,
		DefaultVoice:               raw.DefaultVoice,
		TwilioAccountSID:           raw.TwilioAccountSID,
		TwilioAuthToken:            raw.TwilioAuthToken,
		TwilioFromNumber:           raw.TwilioFromNumber,
		WebhookBaseURL:             raw.WebhookBaseURL,
		ResultWebhookURL:           raw.ResultWebhookURL,
		HTTPListenAddr:             raw.HTTPListenAddr,
		MaxTurns:                   raw.MaxTurns,
		DialTimeout:                raw.DialTimeout,
		TurnTimeout:                raw.TurnTimeout,
		SessionTimeout:             raw.SessionTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
