package achievement

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/achievement/domain"
	"github.com/fanpulse/fanpulse/internal/achievement/service"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/pkg/repository"
)

var Module = fx.Module("achievement.service",
	fx.Provide(func(db *gorm.DB) repository.Repository[domain.Definition] {
		return repository.ProvideStore[domain.Definition](db)
	}),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) scoringdomain.Evaluator { return svc }),
)
