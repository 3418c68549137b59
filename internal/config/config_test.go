package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("boundarybytes-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Store.Driver != StoreDriverPostgres {
		t.Fatalf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.StatementTimeout != 15*time.Second {
		t.Fatalf("Store.StatementTimeout = %s", cfg.Store.StatementTimeout)
	}
	if cfg.AI.Provider != AIProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "" {
		t.Fatalf("AI.APIKey = %q, want empty", cfg.AI.APIKey)
	}
	if !cfg.Audit.Enabled {
		t.Fatal("Audit.Enabled should default to true in dev")
	}
	if diff := cmp.Diff([]string{"*"}, cfg.CORS.AllowedOrigins); diff != "" {
		t.Fatalf("CORS.AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Fatalf("Ingest.Concurrency = %d", cfg.Ingest.Concurrency)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("boundarybytes-api", mapLookup(map[string]string{"BOUNDARYBYTES_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if !cfg.RateLimit.Enabled {
		t.Fatal("RateLimit.Enabled should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("boundarybytes-api", mapLookup(map[string]string{
		"BOUNDARYBYTES_PROFILE":                "test",
		"BOUNDARYBYTES_HTTP_ADDR":              ":9999",
		"BOUNDARYBYTES_HTTP_WRITE_TIMEOUT":     "2m",
		"BOUNDARYBYTES_LOG_LEVEL":              "error",
		"BOUNDARYBYTES_STORE_DRIVER":           "duckdb",
		"BOUNDARYBYTES_STORE_DSN":              "/tmp/wpl.duckdb",
		"BOUNDARYBYTES_STORE_DUCKDB_CSV_DIR":   "/data/export",
		"BOUNDARYBYTES_STORE_MAX_OPEN_CONNS":   "7",
		"BOUNDARYBYTES_AI_PROVIDER":            "anthropic",
		"BOUNDARYBYTES_AI_MODEL":               "claude-sonnet-4-5",
		"BOUNDARYBYTES_AI_TEMPERATURE":         "0.3",
		"BOUNDARYBYTES_AI_MAX_TOKENS":          "900",
		"BOUNDARYBYTES_RATE_LIMIT_ENABLED":     "true",
		"BOUNDARYBYTES_RATE_LIMIT_RPS":         "2.5",
		"BOUNDARYBYTES_RATE_LIMIT_BURST":       "5",
		"BOUNDARYBYTES_CORS_ALLOWED_ORIGINS":   "https://a.example, https://b.example",
		"BOUNDARYBYTES_INGEST_SOURCE":          "s3",
		"BOUNDARYBYTES_OBJECTSTORE_BUCKET":     "cricsheet",
		"BOUNDARYBYTES_AUDIT_ENABLED":          "true",
		"BOUNDARYBYTES_AUDIT_WRITE_TIMEOUT":    "750ms",
		"BOUNDARYBYTES_AUTH_STATIC_KEYS":       "k1:ops:feedback_writer",
		"ANTHROPIC_API_KEY":                    "anthropic-secret",
		"BOUNDARYBYTES_STORE_STATEMENT_TIMEOUT": "4s",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.WriteTimeout != 2*time.Minute {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Store.Driver != StoreDriverDuckDB || cfg.Store.DSN != "/tmp/wpl.duckdb" {
		t.Fatalf("Store = %+v", cfg.Store)
	}
	if cfg.Store.DuckDBCSVDir != "/data/export" {
		t.Fatalf("Store.DuckDBCSVDir = %q", cfg.Store.DuckDBCSVDir)
	}
	if cfg.Store.MaxOpenConns != 7 {
		t.Fatalf("Store.MaxOpenConns = %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Store.StatementTimeout != 4*time.Second {
		t.Fatalf("Store.StatementTimeout = %s", cfg.Store.StatementTimeout)
	}
	if cfg.AI.Provider != AIProviderAnthropic || cfg.AI.Model != "claude-sonnet-4-5" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.BaseURL != "https://api.anthropic.com/v1" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "anthropic-secret" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Temperature != 0.3 || cfg.AI.MaxTokens != 900 {
		t.Fatalf("AI temperature/max tokens = %f/%d", cfg.AI.Temperature, cfg.AI.MaxTokens)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 5 {
		t.Fatalf("RateLimit = %+v", cfg.RateLimit)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins); diff != "" {
		t.Fatalf("CORS.AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Ingest.Source != IngestSourceS3 || cfg.ObjectStore.Bucket != "cricsheet" {
		t.Fatalf("Ingest/ObjectStore = %+v / %+v", cfg.Ingest, cfg.ObjectStore)
	}
	if !cfg.Audit.Enabled || cfg.Audit.WriteTimeout != 750*time.Millisecond {
		t.Fatalf("Audit = %+v", cfg.Audit)
	}
	if cfg.Auth.StaticKeys != "k1:ops:feedback_writer" {
		t.Fatalf("Auth.StaticKeys = %q", cfg.Auth.StaticKeys)
	}
}

func TestLoadPrefersExplicitAPIKeyOverProviderFallback(t *testing.T) {
	cfg, err := Load("boundarybytes-api", mapLookup(map[string]string{
		"BOUNDARYBYTES_AI_API_KEY": "explicit",
		"OPENAI_API_KEY":           "fallback",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"BOUNDARYBYTES_PROFILE": "oops"},
		{"BOUNDARYBYTES_HTTP_READ_TIMEOUT": "NaN"},
		{"BOUNDARYBYTES_STORE_MAX_OPEN_CONNS": "oops"},
		{"BOUNDARYBYTES_STORE_DRIVER": "mysql"},
		{"BOUNDARYBYTES_AI_PROVIDER": "llama"},
		{"BOUNDARYBYTES_AI_TEMPERATURE": "bad"},
		{"BOUNDARYBYTES_INGEST_SOURCE": "ftp"},
		{"BOUNDARYBYTES_CORS_ALLOWED_ORIGINS": " , "},
		{"BOUNDARYBYTES_RATE_LIMIT_ENABLED": "true", "BOUNDARYBYTES_RATE_LIMIT_BURST": "0"},
		{"BOUNDARYBYTES_AUTH_REQUIRED": "not-bool"},
		{"BOUNDARYBYTES_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("boundarybytes-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
