package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "authify", cfg.Issuer)
	require.Equal(t, "EdDSA", cfg.Algorithm)
	require.Equal(t, KeyStoragePersistent, cfg.KeyStorageMode)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, 1, cfg.NumKeys)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.Equal(t, 10*time.Second, cfg.MailTimeout)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.False(t, cfg.CookieSecure)
	require.False(t, cfg.RotateRefreshTokens)
	require.Empty(t, cfg.AdminEmails)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_ADMIN_EMAILS", "root@example.com,ops@example.com")
	t.Setenv("AUTH_COOKIE_SECURE", "true")
	t.Setenv("AUTH_SMTP_HOST", "smtp.example.com")
	t.Setenv("AUTH_SMTP_PORT", "2525")
	t.Setenv("AUTH_MAIL_TIMEOUT", "3s")
	t.Setenv("AUTH_KEY_STORAGE_MODE", "ephemeral")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	require.Equal(t, 2525, cfg.SMTP.Port)
	require.Equal(t, 3*time.Second, cfg.MailTimeout)
	require.Equal(t, KeyStorageEphemeral, cfg.KeyStorageMode)
}

func TestLoadConfigAdminEmails(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"mixed case and spaces", "Root@Example.com, ops@example.com", []string{"root@example.com", "ops@example.com"}},
		{"empty entries dropped", "root@example.com,, ,", []string{"root@example.com"}},
		{"blank", " ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_ADMIN_EMAILS", tt.raw)
			cfg, err := LoadConfig()
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.AdminEmails)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown key mode", map[string]string{"AUTH_KEY_STORAGE_MODE": "vault"}, "AUTH_KEY_STORAGE_MODE"},
		{"unknown driver", map[string]string{"AUTH_STORE_DRIVER": "mysql"}, "AUTH_STORE_DRIVER"},
		{"postgres without url", map[string]string{"AUTH_STORE_DRIVER": "postgres"}, "AUTH_DATABASE_URL"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSetupTracingDisabled(t *testing.T) {
	for _, cfg := range []Config{
		{OTelEnabled: true},
		{OTelEnabled: false, OTelEndpoint: "http://192.0.2.1:4318"},
	} {
		shutdown, err := SetupTracing(context.Background(), cfg, "test")
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	}
}
