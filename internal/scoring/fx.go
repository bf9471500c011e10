package scoring

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/scoring/ledger"
	"github.com/fanpulse/fanpulse/internal/scoring/service"
)

var Module = fx.Module("scoring.service",
	fx.Provide(func(db *gorm.DB) *ledger.Ledger {
		return ledger.New(db)
	}),
	fx.Provide(service.New),
)
