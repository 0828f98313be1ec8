package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	"github.com/gatherly/gatherly/internal/config"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	"github.com/gatherly/gatherly/internal/observability"
	obsmiddleware "github.com/gatherly/gatherly/internal/observability/logger"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	obstracing "github.com/gatherly/gatherly/internal/observability/tracing"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB

	organizationSvc organizationdomain.Service
	accountSvc      accountdomain.Service
	membershipSvc   membershipdomain.Service
}

func NewServer(
	cfg config.Config,
	log *zap.Logger,
	conn *gorm.DB,
	organizationSvc organizationdomain.Service,
	accountSvc accountdomain.Service,
	membershipSvc membershipdomain.Service,
) *Server {
	return &Server{
		cfg:             cfg,
		log:             log,
		db:              conn,
		organizationSvc: organizationSvc,
		accountSvc:      accountSvc,
		membershipSvc:   membershipSvc,
	}
}

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

// RegisterAPIRoutes mounts the public API.
func (s *Server) RegisterAPIRoutes(r *gin.Engine) {
	api := r.Group("/api")

	orgs := api.Group("/organizations")
	orgs.POST("", s.CreateOrganization)
	orgs.GET("", s.ListOrganizations)
	orgs.GET("/:orgId", s.GetOrganization)
	orgs.PATCH("/:orgId", s.UpdateOrganization)
	orgs.DELETE("/:orgId", s.DeleteOrganization)
	orgs.GET("/:orgId/accounts", s.ListOrganizationAccounts)
	orgs.POST("/:orgId/invite", s.SendInvitation)
	orgs.POST("/:orgId/add-account/:accountId", s.AcceptInvitation)
	orgs.POST("/:orgId/remove-account/:accountId", s.RemoveAccount)
	orgs.POST("/:orgId/leave-organization/:accountId", s.LeaveOrganization)
	orgs.POST("/:orgId/change-role/:accountId", s.ChangeRole)

	accounts := api.Group("/accounts")
	accounts.POST("", s.CreateAccount)
	accounts.GET("/:accountId", s.GetAccount)
	accounts.PATCH("/:accountId", s.UpdateAccount)
	accounts.DELETE("/:accountId", s.DeleteAccount)
	accounts.GET("/:accountId/managed-organizations", s.ManagedOrganizations)
}

func registerRoutes(s *Server, r *gin.Engine) {
	s.RegisterAPIRoutes(r)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
