package checks

import (
	"context"

	"github.com/charlesng35/zipkiosk/internal/assets"
	"github.com/charlesng35/zipkiosk/internal/monitoring"
)

// AssetState reports the asset cache lifecycle.
type AssetState interface {
	State() assets.State
	Version() string
	ServingVersion() string
}

// Assets reports degraded until a snapshot is active, since the kiosk page cannot load
// offline before then. Serving an older snapshot than configured is also degraded.
func Assets(manager AssetState) monitoring.Check {
	return monitoring.NewCheck("assets", func(context.Context) monitoring.ProbeResult {
		if manager == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "asset cache not configured"}
		}

		state := manager.State()
		if state != assets.StateActive {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "asset cache " + string(state)}
		}
		if serving := manager.ServingVersion(); serving != manager.Version() {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "serving previous snapshot " + serving}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: manager.Version()}
	})
}
