package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
http_addr: ":9090"
catalog:
  population:
    - year: 2012
      path: data/pop2012.asc
  country_grid: data/country.asc
historical_catalog: data/history.yaml
city_catalog: data/cities.yaml
country_names:
  380: ITA
models:
  fatality:
    default: [0, 0, 0, 0, 0, 0.0001, 0.001, 0.01, 0.1, 0.3]
    g: 2.0
economic:
  weights:
    ITA: 25000
  fallback_weight: 8000
alerting:
  stale_cutoff_hours: 8
  kafka_brokers: [broker-1:9092, broker-2:9092]
  notify_cooldown: 10m
`

func TestLoad_YamlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pager.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PAGER_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://localhost/pager")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if len(cfg.Catalog.Population) != 1 || cfg.Catalog.Population[0].Year != 2012 {
		t.Fatalf("catalog = %+v", cfg.Catalog)
	}
	if cfg.CountryNames[380] != "ITA" {
		t.Fatalf("country names = %v", cfg.CountryNames)
	}
	if cfg.Models.Fatality.G != 2.0 {
		t.Fatalf("fatality g = %f", cfg.Models.Fatality.G)
	}
	if cfg.Models.Economic.G != 2.5 {
		t.Fatalf("economic g default = %f", cfg.Models.Economic.G)
	}
	if cfg.Economic.Weights["ITA"] != 25000 || cfg.Economic.FallbackWeight != 8000 {
		t.Fatalf("economic = %+v", cfg.Economic)
	}
	if cfg.Alerting.StaleCutoff() != 8*time.Hour {
		t.Fatalf("cutoff = %v", cfg.Alerting.StaleCutoff())
	}
	if cfg.Alerting.Cooldown() != 10*time.Minute {
		t.Fatalf("cooldown = %v", cfg.Alerting.Cooldown())
	}
	if len(cfg.Alerting.KafkaBrokers) != 2 {
		t.Fatalf("brokers = %v", cfg.Alerting.KafkaBrokers)
	}
	if cfg.Alerting.KafkaTopic != "pager.alerts" {
		t.Fatalf("topic = %q", cfg.Alerting.KafkaTopic)
	}
}

func TestLoad_RequiresDatabaseAndSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pager.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PAGER_CONFIG", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without database url")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/pager")
	t.Setenv("AUTH_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without jwt secret")
	}
}

func TestLoad_RequiresCatalog(t *testing.T) {
	t.Setenv("PAGER_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/pager")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without population catalog")
	}
}
