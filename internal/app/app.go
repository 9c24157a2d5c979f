package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerfiles "github.com/swaggo/files"
	swagger "github.com/swaggo/gin-swagger"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	_ "github.com/Nazarious-ucu/newsletter-signup-api/docs"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/config"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/emailer"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/handlers/subscriber"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository/cache"
	mongorepo "github.com/Nazarious-ucu/newsletter-signup-api/internal/repository/mongo"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository/sqlite"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/email"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/logger"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/subscribers"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/token"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/sitecfg"
)

const (
	shutdownTimeout = 5 * time.Second
	connectTimeout  = 10 * time.Second

	metricsNamespace = "newsletter"
)

type App struct {
	cfg *config.Config
	log zerolog.Logger
}

type ServiceContainer struct {
	SubscriberService *subscribers.Service
	EmailService      *email.Service
	SiteConfig        *sitecfg.Store
	Metrics           *metrics.Metrics

	Router *gin.Engine
	Srv    *http.Server

	Db          *sql.DB
	MongoClient *mongodriver.Client
	AuditLog    *zap.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{cfg: cfg, log: logger.With().Str("component", "App").Logger()}
}

func (a *App) Init() (*ServiceContainer, error) {
	a.log.Info().Str("address", a.cfg.ServerAddress()).Msg("initializing application")

	m := metrics.New(metricsNamespace)

	container := &ServiceContainer{Metrics: m}
	repo, err := a.initRepository(container, m)
	if err != nil {
		return nil, err
	}

	if a.cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Address})
		ttl := time.Duration(a.cfg.Redis.TTLSeconds) * time.Second
		cacheClient := cache.NewRedisClient[models.Subscriber](rdb, a.log, ttl)
		repo = cache.NewCachedRepository(repo, cacheClient, a.log, m)
		a.log.Info().Str("address", a.cfg.Redis.Address).Msg("subscriber cache enabled")
	}

	auditLog, err := logger.NewFileLogger(a.cfg.MailAuditPath)
	if err != nil {
		return nil, err
	}
	container.AuditLog = auditLog

	smtpService := emailer.NewSMTPService(emailer.Config{
		User:     a.cfg.Email.User,
		Host:     a.cfg.Email.Host,
		Port:     a.cfg.Email.Port,
		Password: a.cfg.Email.Password,
		From:     a.cfg.Email.From,
	}, a.log)
	breakerSender := emailer.NewBreakerSender("smtp", smtpService)
	auditSender := logger.NewAuditSender(auditLog, m, breakerSender)

	emailService := email.NewService(auditSender, a.cfg.TemplatesDir, a.cfg.BaseURL)
	container.EmailService = emailService

	siteConfig, err := sitecfg.Load(a.cfg.SiteConfigPath, a.log)
	if err != nil {
		return nil, err
	}
	container.SiteConfig = siteConfig

	tokenService := token.NewService()
	container.SubscriberService = subscribers.NewService(
		repo, emailService, tokenService, siteConfig, a.log,
	)

	router := gin.New()
	router.Use(gin.Recovery(), m.HTTPMiddleware())
	container.Router = router

	container.Srv = &http.Server{
		Addr:        a.cfg.ServerAddress(),
		Handler:     router,
		ReadTimeout: time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
	}

	return container, nil
}

// initRepository opens the configured store and returns the subscriber
// repository backed by it.
func (a *App) initRepository(
	container *ServiceContainer,
	m *metrics.Metrics,
) (subscribers.SubscriberRepository, error) {
	if a.cfg.DB.Dialect == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		client, err := mongorepo.Connect(ctx, a.cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		container.MongoClient = client

		col := client.Database(a.cfg.Mongo.Database).Collection(a.cfg.Mongo.Collection)
		repo := mongorepo.NewSubscriberRepository(col, a.log, m)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}

	db, err := CreateSqliteDb(a.cfg.DB.Dialect, a.cfg.DB.Source)
	if err != nil {
		return nil, err
	}
	container.Db = db

	if err := InitSqliteDb(db, a.cfg.DB.Dialect, a.cfg.DB.MigrationsPath); err != nil {
		return nil, err
	}
	m.RegisterDBStats(db, "subscribers")

	return sqlite.NewSubscriberRepository(db, a.log, m), nil
}

func (a *App) Start(container *ServiceContainer) error {
	a.log.Info().Str("address", a.cfg.ServerAddress()).Msg("starting server")

	h := subscriber.NewHandler(
		container.SubscriberService,
		container.SiteConfig,
		a.log,
		container.Metrics,
	)

	api := container.Router.Group("/api")
	{
		api.POST("/subscribe", h.Subscribe)
		api.GET("/validate/:token", h.Validate)
		api.POST("/preferences", h.UpdatePreferences)
		api.GET("/health", h.Health)
		api.GET("/site", h.Site)
	}
	container.Router.GET("/metrics", gin.WrapH(container.Metrics.Handler()))
	container.Router.GET("/swagger/*any", swagger.WrapHandler(swaggerfiles.Handler))

	if err := container.Srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Stop(container *ServiceContainer) error {
	a.log.Info().Msg("stopping application")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := container.Srv.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("HTTP shutdown error")
	} else {
		a.log.Info().Msg("HTTP server stopped")
	}

	if container.Db != nil {
		if err := container.Db.Close(); err != nil {
			a.log.Error().Err(err).Msg("DB close error")
		}
	}
	if container.MongoClient != nil {
		if err := container.MongoClient.Disconnect(ctx); err != nil {
			a.log.Error().Err(err).Msg("mongo disconnect error")
		}
	}
	if container.AuditLog != nil {
		if err := container.AuditLog.Sync(); err != nil {
			a.log.Warn().Err(err).Msg("audit log sync error")
		}
	}

	a.log.Info().Msg("shutdown complete")
	return nil
}

func CreateSqliteDb(dialect, name string) (*sql.DB, error) {
	if name == "" {
		return nil, errors.New("database name cannot be empty")
	}
	connectionString := "file:" + name + "?cache=shared&mode=rwc"
	db, err := sql.Open(dialect, connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func InitSqliteDb(db *sql.DB, dialect, migrationPath string) error {
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.Up(db, migrationPath)
}
