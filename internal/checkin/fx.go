package checkin

import (
	"go.uber.org/fx"

	"github.com/fanpulse/fanpulse/internal/checkin/service"
	"github.com/fanpulse/fanpulse/internal/config"
	"github.com/fanpulse/fanpulse/internal/token"
)

var Module = fx.Module("checkin.service",
	fx.Provide(func(cfg config.Config) *token.Verifier {
		return token.NewVerifier(cfg.TokenSecret)
	}),
	fx.Provide(service.New),
)
