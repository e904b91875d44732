package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTP
	Log      Log
	SerpAPI  SerpAPI
	Groq     Groq
	SendGrid SendGrid
	Database Database
}

type HTTP struct {
	Port         string `env:"PORT" env-default:"8080"`
	GinMode      string `env:"GIN_MODE" env-default:"debug"`
	FrontendURLs string `env:"FRONTEND_URL"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

type SerpAPI struct {
	APIKey     string  `env:"SERPAPI_API_KEY" env-required:"true"`
	BaseURL    string  `env:"SERPAPI_BASE_URL" env-default:"https://serpapi.com"`
	RatePerSec float64 `env:"SERPAPI_RATE_PER_SEC" env-default:"5"`
	Burst      int     `env:"SERPAPI_BURST" env-default:"5"`
}

type Groq struct {
	APIKey  string   `env:"GROQ_API_KEY" env-required:"true"`
	BaseURL string   `env:"GROQ_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	Models  []string `env:"GROQ_MODELS" env-separator:"," env-default:"mixtral-8x7b-32768,llama3-70b-8192,llama3-8b-8192,gemma-7b-it"`
}

type SendGrid struct {
	APIKey    string `env:"SENDGRID_API_KEY" env-required:"true"`
	FromEmail string `env:"SENDGRID_FROM_EMAIL" env-required:"true"`
	FromName  string `env:"SENDGRID_FROM_NAME" env-default:"Travel Planner Pro"`
	AttachPDF bool   `env:"EMAIL_ATTACH_PDF" env-default:"true"`
}

// Database is optional; an empty URL disables the itinerary archive.
type Database struct {
	URL string `env:"DATABASE_URL"`
}

// Load reads .env (if any) and then the process environment. A missing
// provider key or sender identity is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify filters out values cleanenv accepts but the app cannot run with.
func (c *Config) Verify() error {
	required := map[string]string{
		"SERPAPI_API_KEY":     c.SerpAPI.APIKey,
		"GROQ_API_KEY":        c.Groq.APIKey,
		"SENDGRID_API_KEY":    c.SendGrid.APIKey,
		"SENDGRID_FROM_EMAIL": c.SendGrid.FromEmail,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config error: missing %s", name)
		}
	}

	models := make([]string, 0, len(c.Groq.Models))
	for _, m := range c.Groq.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return fmt.Errorf("config error: GROQ_MODELS is empty")
	}
	c.Groq.Models = models

	if c.SerpAPI.RatePerSec <= 0 {
		return fmt.Errorf("config error: SERPAPI_RATE_PER_SEC must be positive")
	}
	if c.SerpAPI.Burst <= 0 {
		c.SerpAPI.Burst = 1
	}
	return nil
}

// AllowedOrigins returns the local dev origins plus any comma-separated
// FRONTEND_URL entries.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:8501", "http://localhost:5173", "http://localhost:3000"}
	for _, u := range strings.Split(c.HTTP.FrontendURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			origins = append(origins, u)
		}
	}
	return origins
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
