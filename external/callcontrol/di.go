package callcontrol

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/speech"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (callcontrol.Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*slog.Logger](i)
		if !cfg.LiveCallingEnabled() {
			return NewSimulatedController(logger), nil
		}
		bridge := do.MustInvoke[speech.Bridge](i)
		return NewTwilioController(TwilioConfig{
			AccountSID:     cfg.TwilioAccountSID,
			AuthToken:      cfg.TwilioAuthToken,
			FromNumber:     cfg.TwilioFromNumber,
			WebhookBaseURL: cfg.WebhookBaseURL,
		}, bridge, logger), nil
	})
}
