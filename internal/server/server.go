package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/achievement"
	achievementdomain "github.com/fanpulse/fanpulse/internal/achievement/domain"
	"github.com/fanpulse/fanpulse/internal/checkin"
	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
	"github.com/fanpulse/fanpulse/internal/event"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/internal/leaderboard"
	leaderboarddomain "github.com/fanpulse/fanpulse/internal/leaderboard/domain"
	"github.com/fanpulse/fanpulse/internal/observability"
	obsmiddleware "github.com/fanpulse/fanpulse/internal/observability/logger"
	obsmetrics "github.com/fanpulse/fanpulse/internal/observability/metrics"
	obstracing "github.com/fanpulse/fanpulse/internal/observability/tracing"
	"github.com/fanpulse/fanpulse/internal/ratelimit"
	"github.com/fanpulse/fanpulse/internal/replay"
	"github.com/fanpulse/fanpulse/internal/scoring"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	replay.Module,
	ratelimit.Module,
	event.Module,
	scoring.Module,
	achievement.Module,
	leaderboard.Module,
	checkin.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node

	checkinSvc     checkindomain.Service
	scoringSvc     scoringdomain.Service
	achievementSvc achievementdomain.Service
	leaderboardSvc leaderboarddomain.Service
	eventSvc       eventdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node

	CheckinSvc     checkindomain.Service
	ScoringSvc     scoringdomain.Service
	AchievementSvc achievementdomain.Service
	LeaderboardSvc leaderboarddomain.Service
	EventSvc       eventdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("server"),
		genID:          p.GenID,
		checkinSvc:     p.CheckinSvc,
		scoringSvc:     p.ScoringSvc,
		achievementSvc: p.AchievementSvc,
		leaderboardSvc: p.LeaderboardSvc,
		eventSvc:       p.EventSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.IdentityRequired())

	v1.POST("/checkins", s.ValidateCheckin)
	v1.POST("/activities", s.AwardActivity)
	v1.POST("/interactions", s.LogInteraction)

	v1.GET("/score", s.GetScore)
	v1.GET("/score/streak", s.GetStreak)

	v1.GET("/leaderboard", s.GetLeaderboard)
	v1.GET("/leaderboard/position", s.GetLeaderboardPosition)

	v1.GET("/achievements", s.ListAchievements)
	v1.POST("/achievements/reconcile", s.ReconcileAchievements)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin", s.IdentityRequired(), s.AdminRequired())

	admin.POST("/events", s.CreateEvent)
	admin.GET("/events", s.ListEvents)
	admin.GET("/events/:code", s.GetEvent)
	admin.PATCH("/events/:code/active", s.SetEventActive)
	admin.PATCH("/events/:code/phase", s.SetEventPhase)
	admin.POST("/events/:code/tokens", s.MintToken)
}
