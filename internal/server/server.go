package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/ancloraflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ancloraflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/ancloraflow/internal/observability/tracing"
	verifactudomain "github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
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
	r.Use(httpMetrics.GinMiddleware())
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	verifactuSvc verifactudomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	VerifactuSvc verifactudomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		verifactuSvc: p.VerifactuSvc,
	}

	svc.registerVerifactuRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerVerifactuRoutes() {
	api := s.engine.Group("/api/verifactu", UserRequired())

	// -------- Configuration --------
	api.GET("/config", s.GetVerifactuConfig)
	api.PUT("/config", s.UpdateVerifactuConfig)

	// -------- Registration --------
	api.POST("/register/:invoiceId", s.RegisterInvoice)
	api.POST("/batch-register", s.BatchRegister)
	api.POST("/register-pending", s.RegisterPending)
	api.POST("/cancel/:invoiceId", s.CancelInvoice)

	// -------- Read models --------
	api.GET("/status/:invoiceId", s.GetInvoiceStatus)
	api.GET("/receipt/:invoiceId", s.GetReceipt)
	api.GET("/statistics", s.GetStatistics)
	api.GET("/pending", s.ListPending)
	api.GET("/registered", s.ListRegistered)
	api.GET("/logs", s.ListLogs)
	api.GET("/verify-chain", s.VerifyChain)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
