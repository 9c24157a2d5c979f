//go:build integration
// +build integration

package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/app"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/config"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/handlers/subscriber"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var (
	testServerURL string
	db            *sql.DB
)

func TestMain(m *testing.M) {
	fmt.Println("Starting integration tests...")

	tmpDir, err := os.MkdirTemp("", "newsletter-integration")
	if err != nil {
		log.Panicf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg, err := config.NewConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}
	cfg.DB.Dialect = "sqlite"
	cfg.DB.Source = filepath.Join(tmpDir, "newsletter.db")
	cfg.DB.MigrationsPath = "../../migrations"
	cfg.TemplatesDir = "../../templates"
	cfg.SiteConfigPath = "../../configs/site.yaml"
	cfg.LogsPath = filepath.Join(tmpDir, "newsletter.log")
	cfg.MailAuditPath = filepath.Join(tmpDir, "mail-audit.log")
	cfg.Redis.Enabled = false
	// Point SMTP at a closed port so deliveries fail fast without a relay.
	cfg.Email.Host = "127.0.0.1"
	cfg.Email.Port = "1"

	application := app.New(cfg, zerolog.Nop())
	container, err := application.Init()
	if err != nil {
		log.Panicf("failed to initialize application: %v", err)
	}

	if container.Db == nil {
		log.Panic("database is not initialized")
	}
	if err := container.Db.Ping(); err != nil {
		log.Panicf("failed to connect to the database: %v", err)
	}

	h := subscriber.NewHandler(
		container.SubscriberService,
		container.SiteConfig,
		zerolog.Nop(),
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

	testServer := httptest.NewServer(container.Router)
	defer func() {
		if err := application.Stop(container); err != nil {
			log.Panicf("failed to shutdown application: %v", err)
		}
		testServer.Close()
	}()

	testServerURL = testServer.URL
	db = container.Db

	_ = m.Run()
}

func resetTables(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM subscribers")
	if err != nil {
		return fmt.Errorf("failed to reset subscribers table: %w", err)
	}
	return nil
}

type subscriberRow struct {
	Email          string
	EmailValidated bool
	Token          sql.NullString
	Preferences    string
	Count          int
}

func fetchSubscriber(t *testing.T, email string) subscriberRow {
	t.Helper()

	var row subscriberRow
	err := db.QueryRow(
		`SELECT email, email_validated, validation_token, preferences FROM subscribers WHERE email = ?`,
		email,
	).Scan(&row.Email, &row.EmailValidated, &row.Token, &row.Preferences)
	assert.NoErrorf(t, err, "failed to fetch subscriber: %v", err)

	err = db.QueryRow(`SELECT COUNT(*) FROM subscribers WHERE email = ?`, email).Scan(&row.Count)
	assert.NoErrorf(t, err, "failed to count subscribers: %v", err)

	return row
}
