package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sublease-service/internal/geocoder"
	"sublease-service/internal/handler"
	"sublease-service/internal/middleware"
	mongostore "sublease-service/internal/mongo"
	"sublease-service/internal/repository"
	"sublease-service/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file loaded")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}

	locationRepo := repository.NewLocationRepository(db)
	if err := locationRepo.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("schema")
	}

	mongoClient := mongostore.NewClient(cfg.MongoURI)
	photoRepo := repository.NewPhotoRepository(mongoClient, cfg.MongoDB, cfg.PublicBaseURL)

	svc := service.NewLocationService(locationRepo, geocoder.NewGoogle(cfg.GeocodeRegion), photoRepo)
	watcher := repository.NewWatcher(cfg.DatabaseURL, locationRepo)

	locations := &handler.LocationHandler{Svc: svc, Watcher: watcher}
	photos := &handler.PhotoHandler{Repo: photoRepo}

	r := gin.Default()
	api := r.Group("/api")

	protected := api.Group("/")
	protected.Use(middleware.JWTAuthMiddleware())

	locations.RegisterRoutes(api, protected)
	photos.RegisterRoutes(api)

	log.Info().Str("port", cfg.Port).Msg("sublease service running")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
