package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/app"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/config"
	"github.com/Nazarious-ucu/newsletter-signup-api/pkg/logger"
)

const serviceName = "NewsletterSignupAPI"

// @title Newsletter Signup API
// @version 1.0
// @description API for collecting newsletter signups with email validation
// @host localhost:8080
// @BasePath /api/
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on process environment")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogsPath, serviceName)
	if err != nil {
		log.Panicf("failed to create logger: %v", err)
	}

	application := app.New(cfg, zlog)

	container, err := application.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize application")
	}

	go func() {
		if err := application.Start(container); err != nil {
			zlog.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := application.Stop(container); err != nil {
		zlog.Error().Err(err).Msg("failed to shutdown application")
	}
}
