package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/pkg/db"
	"github.com/fanpulse/fanpulse/pkg/db/option"
	"github.com/fanpulse/fanpulse/pkg/repository"
	"github.com/gosimple/slug"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  repository.Repository[domain.Event]
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  repository.Repository[domain.Event]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("event.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	ev := &domain.Event{
		ID:        s.genID.Generate().Int64(),
		Code:      code,
		Name:      name,
		Phase:     strings.TrimSpace(req.Phase),
		Active:    active,
		Chapters:  req.Chapters,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeTaken
		}
		return nil, err
	}

	resp := toResponse(ev)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := &domain.Event{}
	opts := []option.QueryOption{
		option.WithSortBy(option.WithQuerySortBy(req.SortBy, req.OrderBy, map[string]bool{
			"created_at": true,
			"updated_at": true,
			"name":       true,
			"code":       true,
		})),
	}

	items, err := s.repo.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		if req.Active != nil && item.Active != *req.Active {
			continue
		}
		resp = append(resp, toResponse(item))
	}
	return resp, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Response, error) {
	ev, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := toResponse(ev)
	return &resp, nil
}

func (s *Service) SetActive(ctx context.Context, code string, active bool) (*domain.Response, error) {
	ev, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	ev.Active = active
	ev.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, ev.ID, map[string]any{
		"active":     ev.Active,
		"updated_at": ev.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	resp := toResponse(ev)
	return &resp, nil
}

func (s *Service) SetPhase(ctx context.Context, code, phase string) (*domain.Response, error) {
	ev, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	ev.Phase = strings.TrimSpace(phase)
	ev.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, ev.ID, map[string]any{
		"phase":      ev.Phase,
		"updated_at": ev.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	s.log.Info("event phase changed",
		zap.String("event", ev.Code),
		zap.String("phase", ev.Phase),
	)

	resp := toResponse(ev)
	return &resp, nil
}

func (s *Service) ValidateScan(ctx context.Context, tokenEventCode, expectedCode string) (*domain.Event, error) {
	ev, err := s.findByCode(ctx, tokenEventCode)
	if err != nil {
		return nil, err
	}
	if !ev.Active {
		return nil, domain.ErrEventInactive
	}
	if expected := strings.TrimSpace(expectedCode); expected != "" && expected != ev.Code {
		return nil, domain.ErrEventMismatch
	}
	return ev, nil
}

func (s *Service) findByCode(ctx context.Context, code string) (*domain.Event, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	ev, err := s.repo.FindOne(ctx, &domain.Event{Code: code})
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

func toResponse(ev *domain.Event) domain.Response {
	return domain.Response{
		ID:        snowflake.ID(ev.ID).String(),
		Code:      ev.Code,
		Name:      ev.Name,
		Phase:     ev.Phase,
		Active:    ev.Active,
		Chapters:  ev.Chapters,
		StartsAt:  ev.StartsAt,
		EndsAt:    ev.EndsAt,
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.UpdatedAt,
	}
}
