package backend

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup.
type Config struct {
	SiteAddr       string
	SiteRoot       string
	LogLevel       string
	AdminAddr      string
	AdminJWTSecret string
	DatabaseURL    string
	RedisURL       string
}

// LoadConfig reads the environment, after applying an optional .env file
// from the working directory. It reports whether a .env file was loaded.
func LoadConfig() (Config, bool) {
	loaded := godotenv.Load() == nil
	return Config{
		SiteAddr:       getenv("SITE_ADDR", ":8080"),
		SiteRoot:       getenv("SITE_ROOT", "."),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AdminAddr:      os.Getenv("ADMIN_ADDR"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
	}, loaded
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
