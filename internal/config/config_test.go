package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://bot.example.com/")
	t.Setenv("DATABASE_URL", "postgres://localhost/memberbot")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.PublicBaseURL != "https://bot.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected postgres driver by default, got %q", cfg.StoreDriver)
	}
	if cfg.StaleAfter != 24*time.Hour {
		t.Fatalf("expected 24h staleness window, got %v", cfg.StaleAfter)
	}
	if cfg.QRSize != 256 {
		t.Fatalf("expected qr size 256, got %d", cfg.QRSize)
	}
}

func TestLoadConfigMissingBaseURL(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without PUBLIC_BASE_URL")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "sqlite without database url",
			cfg: Config{PublicBaseURL: "https://x", StoreDriver: StoreDriverSQLite, SQLitePath: "bot.db",
				TelegramBotToken: "t", StaleAfter: time.Hour, SweepInterval: time.Minute},
		},
		{
			name: "postgres without database url",
			cfg: Config{PublicBaseURL: "https://x", StoreDriver: StoreDriverPostgres,
				TelegramBotToken: "t", StaleAfter: time.Hour, SweepInterval: time.Minute},
			wantErr: true,
		},
		{
			name: "unknown driver",
			cfg: Config{PublicBaseURL: "https://x", StoreDriver: "mysql",
				TelegramBotToken: "t", StaleAfter: time.Hour, SweepInterval: time.Minute},
			wantErr: true,
		},
		{
			name: "no platform configured",
			cfg: Config{PublicBaseURL: "https://x", StoreDriver: StoreDriverSQLite, SQLitePath: "bot.db",
				StaleAfter: time.Hour, SweepInterval: time.Minute},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
