package leaderboard

import (
	"go.uber.org/fx"

	"github.com/fanpulse/fanpulse/internal/leaderboard/service"
)

var Module = fx.Module("leaderboard.service",
	fx.Provide(service.New),
)
