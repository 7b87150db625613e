package speech

import (
	"context"
	"time"

	"github.com/samber/do/v2"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/speech"
)

const clientInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (speech.Bridge, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.LiveCallingEnabled() {
			return NewPassthroughBridge(), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), clientInitTimeout)
		defer cancel()
		bridge, err := NewCloudBridge(ctx, CloudSpeechConfig{
			CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
			Language:        cfg.SpeechLanguage,
		})
		if err != nil {
			return nil, err
		}
		return bridge, nil
	})
}
