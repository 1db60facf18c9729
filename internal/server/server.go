package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lgltools/platform/internal/billingrun"
	"github.com/lgltools/platform/internal/clock"
	"github.com/lgltools/platform/internal/config"
	"github.com/lgltools/platform/internal/observability/metrics"
	"github.com/lgltools/platform/internal/settlement"
	"github.com/lgltools/platform/internal/sweep"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(m *metrics.Metrics) *gin.Engine {
	return NewEngine(m)
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	metrics       *metrics.Metrics
	usageSvc      usagedomain.Service
	toolSvc       tooldomain.Service
	workspaceSvc  workspacedomain.Service
	chargeSvc     chargedomain.Service
	profileSvc    profiledomain.Service
	dispatcher    settlement.Service
	billingRunner billingrun.Service
	sweeper       sweep.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Metrics       *metrics.Metrics
	UsageSvc      usagedomain.Service
	ToolSvc       tooldomain.Service
	WorkspaceSvc  workspacedomain.Service
	ChargeSvc     chargedomain.Service
	ProfileSvc    profiledomain.Service
	Dispatcher    settlement.Service
	BillingRunner billingrun.Service
	Sweeper       sweep.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		genID:         p.GenID,
		clock:         p.Clock,
		metrics:       p.Metrics,
		usageSvc:      p.UsageSvc,
		toolSvc:       p.ToolSvc,
		workspaceSvc:  p.WorkspaceSvc,
		chargeSvc:     p.ChargeSvc,
		profileSvc:    p.ProfileSvc,
		dispatcher:    p.Dispatcher,
		billingRunner: p.BillingRunner,
		sweeper:       p.Sweeper,
	}

	svc.registerAPIRoutes()
	svc.registerCronRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/usage", s.RecordUsage)
}

func (s *Server) registerCronRoutes() {
	cron := s.engine.Group("/api/cron", s.CronAuthRequired())

	cron.GET("/usage-billing", s.RunUsageBilling)
	cron.GET("/trial-check", s.RunTrialCheck)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")

	// -------- Catalog --------
	admin.GET("/tools", s.ListTools)
	admin.POST("/tools", s.CreateTool)
	admin.POST("/workspaces", s.CreateWorkspace)
	admin.POST("/workspaces/:workspaceId/tools", s.AssignTool)
	admin.POST("/billing-clients", s.CreateBillingClient)

	// -------- Usage --------
	admin.GET("/usage", s.ListUsageAggregates)

	// -------- Scheduled charges --------
	admin.GET("/charges", s.ListCharges)
	admin.POST("/charges", s.CreateCharge)
	admin.POST("/charges/:chargeId/trigger", s.TriggerCharge)
	admin.POST("/charges/:chargeId/cancel", s.CancelCharge)
}
