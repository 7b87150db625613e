package httpapi

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/repository"
	"github.com/vehiclecare/voicebook/internal/session"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*slog.Logger](i)
		manager := do.MustInvoke[*session.Manager](i)
		repo := do.MustInvoke[repository.Repository](i)
		calls := do.MustInvoke[callcontrol.Controller](i)
		return NewServer(cfg, logger, manager, repo, calls), nil
	})
}
