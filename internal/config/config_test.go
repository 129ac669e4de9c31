package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// missingEnv points godotenv at a file that does not exist so a developer's
// .env in the package directory cannot leak into the tests.
func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", missingEnv(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Engine.CommandBuffer != 1024 || cfg.Engine.MarketMaker {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Engine.CommissionRate.Equal(decimal.RequireFromString("0.0223")) {
		t.Fatalf("commission = %s", cfg.Engine.CommissionRate)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: ":9090"
  request_timeout: 5s
engine:
  commission_rate: "0.01"
  market_maker: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, missingEnv(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RequestTimeout != 5*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if !cfg.Engine.MarketMaker || !cfg.Engine.CommissionRate.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.CommandBuffer != 1024 {
		t.Fatalf("unset yaml keys must keep defaults, buffer = %d", cfg.Engine.CommandBuffer)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestEnvOverridesYAMLAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(yamlPath, []byte("server:\n  addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath, []byte("LOG_LEVEL=warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("API_ADDR", ":7070")
	t.Setenv("ENGINE_MARKET_MAKER", "true")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	// godotenv never overrides a variable that is already set
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(yamlPath, envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr = %q, want env value", cfg.Server.Addr)
	}
	if !cfg.Engine.MarketMaker {
		t.Fatalf("market maker should be on")
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.example" {
		t.Fatalf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q, want .env value", cfg.Log.Level)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"timeout", "REQUEST_TIMEOUT_MS", "soon"},
		{"commission", "ENGINE_COMMISSION_RATE", "2%"},
		{"negative commission", "ENGINE_COMMISSION_RATE", "-0.1"},
		{"market maker", "ENGINE_MARKET_MAKER", "sometimes"},
		{"buffer", "ENGINE_COMMAND_BUFFER", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load("", missingEnv(t)); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
