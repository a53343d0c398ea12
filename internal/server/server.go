package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/clock"
	"github.com/mirage-studio/mirage/internal/config"
	"github.com/mirage-studio/mirage/internal/creation"
	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/internal/credit"
	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	"github.com/mirage-studio/mirage/internal/favorite"
	favoritedomain "github.com/mirage-studio/mirage/internal/favorite/domain"
	"github.com/mirage-studio/mirage/internal/gallery"
	gallerydomain "github.com/mirage-studio/mirage/internal/gallery/domain"
	"github.com/mirage-studio/mirage/internal/generation"
	generationdomain "github.com/mirage-studio/mirage/internal/generation/domain"
	"github.com/mirage-studio/mirage/internal/observability"
	obslogger "github.com/mirage-studio/mirage/internal/observability/logger"
	obsmetrics "github.com/mirage-studio/mirage/internal/observability/metrics"
	"github.com/mirage-studio/mirage/internal/payment"
	paymentdomain "github.com/mirage-studio/mirage/internal/payment/domain"
	"github.com/mirage-studio/mirage/internal/ratelimit"
	"github.com/mirage-studio/mirage/internal/referral"
	referraldomain "github.com/mirage-studio/mirage/internal/referral/domain"
	"github.com/mirage-studio/mirage/internal/storage"
	storagedomain "github.com/mirage-studio/mirage/internal/storage/domain"
	"github.com/mirage-studio/mirage/internal/vote"
	votedomain "github.com/mirage-studio/mirage/internal/vote/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	clock.Module,
	credit.Module,
	creation.Module,
	vote.Module,
	favorite.Module,
	gallery.Module,
	storage.Module,
	generation.Module,
	payment.Module,
	referral.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
	db            *gorm.DB
	creditSvc     creditdomain.Service
	creationSvc   creationdomain.Service
	voteSvc       votedomain.Service
	favoriteSvc   favoritedomain.Service
	gallerySvc    gallerydomain.Service
	generationSvc generationdomain.Service
	paymentSvc    paymentdomain.Service
	referralSvc   referraldomain.Service
	storageSvc    storagedomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	CreditSvc     creditdomain.Service
	CreationSvc   creationdomain.Service
	VoteSvc       votedomain.Service
	FavoriteSvc   favoritedomain.Service
	GallerySvc    gallerydomain.Service
	GenerationSvc generationdomain.Service
	PaymentSvc    paymentdomain.Service
	ReferralSvc   referraldomain.Service
	StorageSvc    storagedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		creditSvc:     p.CreditSvc,
		creationSvc:   p.CreationSvc,
		voteSvc:       p.VoteSvc,
		favoriteSvc:   p.FavoriteSvc,
		gallerySvc:    p.GallerySvc,
		generationSvc: p.GenerationSvc,
		paymentSvc:    p.PaymentSvc,
		referralSvc:   p.ReferralSvc,
		storageSvc:    p.StorageSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/generate", s.UserRequired(), s.Generate)

	// -------- Creations --------
	api.POST("/creations", s.UserRequired(), s.SaveCreation)
	api.DELETE("/creations/:id", s.UserRequired(), s.DeleteCreation)
	api.GET("/creations/:id/videos", s.UserRequired(), s.ListVideosForImage)

	// -------- Feed --------
	api.GET("/gallery", s.Gallery)
	api.GET("/models", s.UserRequired(), s.ListModels)
	api.POST("/votes", s.UserRequired(), s.CastVote)
	api.GET("/favorites", s.UserRequired(), s.ListFavorites)
	api.POST("/favorites", s.UserRequired(), s.ToggleFavorite)

	// -------- Credits & Payments --------
	api.GET("/credits", s.UserRequired(), s.GetCredits)
	api.POST("/payments/charges", s.UserRequired(), s.CreateCharge)
	api.POST("/payments/webhook", s.PaymentWebhook)

	// -------- Referrals --------
	api.GET("/referrals", s.UserRequired(), s.GetReferralSummary)
	api.POST("/referrals", s.ReferralAction)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/v1/admin", s.UserRequired())

	admin.POST("/media/migrate", s.MigrateMedia)
	admin.POST("/videos/link", s.LinkVideos)
}
