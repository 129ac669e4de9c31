package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type Database struct {
	// URL is a pgx connection string. Empty disables the trade journal.
	URL string `yaml:"url"`
}

type Engine struct {
	CommissionRate decimal.Decimal `yaml:"commission_rate"`
	// MarketMaker absorbs unfilled residuals with a trade against order id 0
	// instead of resting them.
	MarketMaker   bool `yaml:"market_maker"`
	CommandBuffer int  `yaml:"command_buffer"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Engine   Engine   `yaml:"engine"`
	Log      Log      `yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			RequestTimeout: 3 * time.Second,
		},
		Engine: Engine{
			CommissionRate: decimal.RequireFromString("0.0223"),
			MarketMaker:    false,
			CommandBuffer:  1024,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration.
// Priority: ENV > .env file > YAML file > defaults. A missing YAML or .env file is not an error.
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", yamlPath, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		}
	}

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("REQUEST_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REQUEST_TIMEOUT_MS: %w", err)
		}
		cfg.Server.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ENGINE_COMMISSION_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: ENGINE_COMMISSION_RATE: %w", err)
		}
		cfg.Engine.CommissionRate = rate
	}
	if v := os.Getenv("ENGINE_MARKET_MAKER"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: ENGINE_MARKET_MAKER: %w", err)
		}
		cfg.Engine.MarketMaker = on
	}
	if v := os.Getenv("ENGINE_COMMAND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: ENGINE_COMMAND_BUFFER: %w", err)
		}
		cfg.Engine.CommandBuffer = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server address is empty")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	if c.Engine.CommandBuffer < 0 {
		return errors.New("config: command buffer must not be negative")
	}
	if c.Engine.CommissionRate.IsNegative() {
		return errors.New("config: commission rate must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
