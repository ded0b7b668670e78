package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quake-pager/internal/catalog"
	pager "quake-pager/internal/pager/domain"
)

// RatesConfig holds one rate table plus the lognormal spread for its model.
type RatesConfig struct {
	Default   [pager.IntensityBins]float64            `yaml:"default"`
	ByCountry map[string][pager.IntensityBins]float64 `yaml:"by_country"`
	G         float64                                 `yaml:"g"`
}

// SemiEmpiricalConfig parameterizes the structural fatality model.
type SemiEmpiricalConfig struct {
	Enabled          bool                         `yaml:"enabled"`
	UrbanRates       [pager.IntensityBins]float64 `yaml:"urban_rates"`
	RuralRates       [pager.IntensityBins]float64 `yaml:"rural_rates"`
	ResidentialShare float64                      `yaml:"residential_share"`
	G                float64                      `yaml:"g"`
}

// ModelsConfig holds the loss model parameter tables.
type ModelsConfig struct {
	Fatality      RatesConfig         `yaml:"fatality"`
	Economic      RatesConfig         `yaml:"economic"`
	SemiEmpirical SemiEmpiricalConfig `yaml:"semi_empirical"`
}

// EconomicConfig maps countries to per-capita exposed wealth in US dollars.
type EconomicConfig struct {
	Weights        map[string]float64 `yaml:"weights"`
	FallbackWeight float64            `yaml:"fallback_weight"`
}

// AlertingConfig drives the alert decision engine and notification channels.
type AlertingConfig struct {
	StaleCutoffHours int      `yaml:"stale_cutoff_hours"`
	WebhookURL       string   `yaml:"webhook_url"`
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopic       string   `yaml:"kafka_topic"`
	NotifyCooldown   string   `yaml:"notify_cooldown"`
	DedupeWindow     string   `yaml:"dedupe_window"`
}

// Config is the service configuration, loaded from yaml with env fallbacks.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`

	Catalog        catalog.Catalog `yaml:"catalog"`
	HistoricalPath string          `yaml:"historical_catalog"`
	CityPath       string          `yaml:"city_catalog"`
	CountryNames   map[int]string  `yaml:"country_names"`

	Models   ModelsConfig   `yaml:"models"`
	Economic EconomicConfig `yaml:"economic"`
	Alerting AlertingConfig `yaml:"alerting"`
}

// Load builds configuration from PAGER_CONFIG yaml and environment variables.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	cfg.Models.Fatality.G = 2.5
	cfg.Models.Economic.G = 2.5
	cfg.Models.SemiEmpirical.G = 2.5
	cfg.Models.SemiEmpirical.ResidentialShare = 0.7
	cfg.Economic.FallbackWeight = getenvFloatDefault("ECONOMIC_FALLBACK_WEIGHT", 10000)
	cfg.Alerting.StaleCutoffHours = getenvIntDefault("ALERT_STALE_CUTOFF_HOURS", 24)

	if path := os.Getenv("PAGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Alerting.WebhookURL == "" {
		cfg.Alerting.WebhookURL = os.Getenv("ALERT_WEBHOOK_URL")
	}
	if len(cfg.Alerting.KafkaBrokers) == 0 {
		cfg.Alerting.KafkaBrokers = splitCSV(os.Getenv("ALERT_KAFKA_BROKERS"))
	}
	if cfg.Alerting.KafkaTopic == "" {
		cfg.Alerting.KafkaTopic = getenvDefault("ALERT_KAFKA_TOPIC", "pager.alerts")
	}
	if cfg.Alerting.NotifyCooldown == "" {
		cfg.Alerting.NotifyCooldown = os.Getenv("ALERT_NOTIFY_COOLDOWN")
	}
	if cfg.Alerting.DedupeWindow == "" {
		cfg.Alerting.DedupeWindow = os.Getenv("ALERT_NOTIFY_DEDUP_WINDOW")
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	if len(cfg.Catalog.Population) == 0 {
		return cfg, errors.New("config: catalog.population requires at least one dataset")
	}
	if cfg.Catalog.CountryGrid == "" {
		return cfg, errors.New("config: catalog.country_grid is required")
	}
	return cfg, nil
}

// StaleCutoff returns the alerting cutoff as a duration. Zero disables it.
func (c AlertingConfig) StaleCutoff() time.Duration {
	if c.StaleCutoffHours <= 0 {
		return 0
	}
	return time.Duration(c.StaleCutoffHours) * time.Hour
}

// Cooldown parses the notify cooldown, zero when unset or invalid.
func (c AlertingConfig) Cooldown() time.Duration {
	return parseDuration(c.NotifyCooldown)
}

// Dedupe parses the dedupe window, zero when unset or invalid.
func (c AlertingConfig) Dedupe() time.Duration {
	return parseDuration(c.DedupeWindow)
}

func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
