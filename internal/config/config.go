package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	AutoMigrate     bool
}

type AuthConfig struct {
	AccessSecret string
}

type SyncConfig struct {
	RemoteDriver string
	Debounce     time.Duration
	MaxWait      time.Duration
}

type ReportConfig struct {
	Legend   string
	Currency string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Sync        SyncConfig
	Report      ReportConfig
}

const (
	RemoteDriverPostgres = "postgres"
	RemoteDriverMemory   = "memory"
)

func Load() (*Config, error) {
	return load(true)
}

// LoadForTools loads the same configuration without requiring the token
// secret, for operator commands that never serve HTTP.
func LoadForTools() (*Config, error) {
	return load(false)
}

func load(requireSecret bool) (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("SYNC_DEBOUNCE", "2s")
	v.SetDefault("SYNC_MAX_WAIT", "30s")

	_ = v.ReadInConfig()

	return fromViper(v, requireSecret)
}

func fromViper(v *viper.Viper, requireSecret bool) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Sync: SyncConfig{
			RemoteDriver: strings.ToLower(strings.TrimSpace(v.GetString("REMOTE_DRIVER"))),
			Debounce:     v.GetDuration("SYNC_DEBOUNCE"),
			MaxWait:      v.GetDuration("SYNC_MAX_WAIT"),
		},
		Report: ReportConfig{
			Legend:   v.GetString("REPORT_LEGEND"),
			Currency: strings.ToUpper(strings.TrimSpace(v.GetString("REPORT_CURRENCY"))),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Sync.RemoteDriver == "" {
		cfg.Sync.RemoteDriver = RemoteDriverPostgres
	}
	if cfg.Sync.Debounce <= 0 {
		cfg.Sync.Debounce = 2 * time.Second
	}
	if cfg.Report.Legend == "" {
		cfg.Report.Legend = "SISTEMA DE CONTROL DE OBRA PÚBLICA"
	}
	if cfg.Report.Currency == "" {
		cfg.Report.Currency = "ARS"
	}

	if err := validate(cfg, requireSecret); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config, requireSecret bool) error {
	switch cfg.Sync.RemoteDriver {
	case RemoteDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case RemoteDriverMemory:
	default:
		return fmt.Errorf("REMOTE_DRIVER must be %q or %q", RemoteDriverPostgres, RemoteDriverMemory)
	}
	if requireSecret && cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Sync.MaxWait < 0 {
		return fmt.Errorf("SYNC_MAX_WAIT must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
