package session

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/dialogue"
	"github.com/vehiclecare/voicebook/internal/notify"
	"github.com/vehiclecare/voicebook/internal/repository"
	"github.com/vehiclecare/voicebook/internal/speech"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*slog.Logger](i)
		calls := do.MustInvoke[callcontrol.Controller](i)
		bridge := do.MustInvoke[speech.Bridge](i)
		engine := do.MustInvoke[dialogue.Engine](i)
		repo := do.MustInvoke[repository.Repository](i)
		notifier := do.MustInvoke[notify.Sender](i)
		directory := do.MustInvoke[booking.Directory](i)
		return NewManager(cfg, logger, calls, bridge, engine, repo, notifier, directory), nil
	})
}
