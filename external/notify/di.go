package notify

import (
	"github.com/samber/do/v2"

	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/notify"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notify.Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.ResultWebhookURL), nil
	})
}
