package event

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/internal/event/service"
	"github.com/fanpulse/fanpulse/pkg/repository"
)

var Module = fx.Module("event.service",
	fx.Provide(func(db *gorm.DB) repository.Repository[domain.Event] {
		return repository.ProvideStore[domain.Event](db)
	}),
	fx.Provide(service.New),
)
