package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"DB_DSN":            "postgres://localhost/obras",
		"JWT_ACCESS_SECRET": "secret",
	}), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "development" || cfg.HTTP.Port != 7090 || cfg.Sync.RemoteDriver != RemoteDriverPostgres {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Sync.Debounce != 2*time.Second {
		t.Fatalf("debounce = %v", cfg.Sync.Debounce)
	}
	if cfg.Report.Currency != "ARS" || cfg.Report.Legend == "" {
		t.Fatalf("unexpected report config %+v", cfg.Report)
	}
}

func TestMemoryDriverDoesNotNeedDSN(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"REMOTE_DRIVER":        "Memory",
		"JWT_ACCESS_SECRET":    "secret",
		"SYNC_DEBOUNCE":        "250ms",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
	}), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sync.Debounce != 250*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.Sync.Debounce)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]any
		want   string
	}{
		{"missing dsn", map[string]any{"JWT_ACCESS_SECRET": "s"}, "DB_DSN"},
		{"missing secret", map[string]any{"DB_DSN": "x"}, "JWT_ACCESS_SECRET"},
		{"bad driver", map[string]any{"REMOTE_DRIVER": "mongo", "JWT_ACCESS_SECRET": "s"}, "REMOTE_DRIVER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fromViper(newViper(tc.values), true)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestToolsDoNotNeedSecret(t *testing.T) {
	if _, err := fromViper(newViper(map[string]any{"DB_DSN": "x"}), false); err != nil {
		t.Fatalf("load: %v", err)
	}
}
