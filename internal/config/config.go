package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port        int    `yaml:"port"`
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`
	DBPath      string `yaml:"db_path"`

	// ChallengeSecret signs login challenges. Empty means a random key per
	// process.
	ChallengeSecret     string `yaml:"challenge_secret"`
	CodeHashCost        int    `yaml:"code_hash_cost"`
	ReapIntervalMinutes int    `yaml:"reap_interval_minutes"`

	SMS SMSConfig `yaml:"sms"`
}

type SMSConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`
}

func defaults() Config {
	return Config{
		Port:                8080,
		DBPath:              "streamflix.db",
		ReapIntervalMinutes: 60,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// AUTHD_CONFIG_FILE (if any), then environment variables. A .env file in the
// working directory is loaded into the environment first when present.
func Load() (Config, error) {
	_ = godotenv.Load() // ok if missing

	cfg := defaults()

	if path := os.Getenv("AUTHD_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("AUTHD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("AUTHD_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("AUTHD_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("AUTHD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AUTHD_CHALLENGE_SECRET"); v != "" {
		cfg.ChallengeSecret = v
	}
	if v := os.Getenv("AUTHD_CODE_HASH_COST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CodeHashCost = n
		}
	}
	if v := os.Getenv("AUTHD_REAP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReapIntervalMinutes = n
		}
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.SMS.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.SMS.AuthToken = v
	}
	if v := os.Getenv("TWILIO_PHONE_NUMBER"); v != "" {
		cfg.SMS.PhoneNumber = v
	}

	if cfg.Store == "" {
		cfg.Store = StoreSQLite
		if cfg.DatabaseURL != "" {
			cfg.Store = StorePostgres
		}
	}
	switch cfg.Store {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("store %q needs AUTHD_DATABASE_URL or DATABASE_URL", cfg.Store)
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
