package main

import (
	"errors"
	"os"
)

// Config holds everything the service reads from the environment.
type Config struct {
	DatabaseURL   string
	MongoURI      string
	MongoDB       string
	Port          string
	PublicBaseURL string
	GeocodeRegion string
}

func loadConfig() (Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		return Config{}, errors.New("MONGO_URI is required")
	}

	port := envOrDefault("PORT", "8083")

	return Config{
		DatabaseURL:   dbURL,
		MongoURI:      mongoURI,
		MongoDB:       envOrDefault("MONGO_DB", "subleases"),
		Port:          port,
		PublicBaseURL: envOrDefault("PUBLIC_BASE_URL", "http://localhost:"+port),
		GeocodeRegion: envOrDefault("GEOCODE_REGION", "us"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
