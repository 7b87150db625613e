package dialogue

import (
	"context"
	"time"

	"github.com/samber/do/v2"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/dialogue"
)

const clientInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (dialogue.Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.GeminiEnabled() {
			return NewRuleBasedEngine(), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), clientInitTimeout)
		defer cancel()
		engine, err := NewGeminiEngine(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		return engine, nil
	})
}
