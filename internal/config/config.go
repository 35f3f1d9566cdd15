package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is loaded once at process start and treated as immutable afterwards.
type Config struct {
	DSN       string
	JWTSecret string
	AppPort   string

	// AllowedNamespaces are the fully-qualified type name prefixes a resolved
	// model must fall under before it is exposed for CRUD.
	AllowedNamespaces []string
	// ModelPaths are the directories scanned for candidate model definitions.
	ModelPaths []string

	LogDir   string
	LogLevel string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system environment variables")
	}

	cfg := Config{
		DSN:               os.Getenv("MYSQL_DSN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AppPort:           os.Getenv("APP_PORT"),
		AllowedNamespaces: splitList(os.Getenv("CRUD_ALLOWED_NAMESPACES")),
		ModelPaths:        splitList(os.Getenv("CRUD_MODEL_PATHS")),
		LogDir:            os.Getenv("LOG_DIR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
	}

	if cfg.DSN == "" {
		log.Fatal("MYSQL_DSN not set in environment")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-only"
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}
	if len(cfg.AllowedNamespaces) == 0 {
		cfg.AllowedNamespaces = []string{"github.com/doonfrs/trinacrud/internal/models"}
	}
	if len(cfg.ModelPaths) == 0 {
		cfg.ModelPaths = []string{"internal/models"}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
