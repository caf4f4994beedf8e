package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_AUTH_BEARER_SECRET", "bearer")
	t.Setenv("GATEWAY_AUTH_REFRESH_SECRET", "refresh")
	t.Setenv("GATEWAY_AUTH_SENDER_SECRET", "sender")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 25*time.Second, cfg.HTTP.KeepAlive)
	assert.Equal(t, int64(10), cfg.Notification.PageSize)
	assert.Equal(t, 256, cfg.Notification.MailboxSize)
	assert.Equal(t, "notification.commands", cfg.AMQP.Exchange)
	assert.Empty(t, cfg.Notification.DirectoryAddress)
	assert.Equal(t, "sender", cfg.Auth.SenderSecret)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	setSecrets(t)
	t.Setenv("GATEWAY_NOTIFICATION_PAGE_SIZE", "25")

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9090"
notification:
  page_size: 5
  directory_address: "dns:///notification:50051"
log:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, int64(25), cfg.Notification.PageSize, "environment wins over the file")
	assert.Equal(t, "dns:///notification:50051", cfg.Notification.DirectoryAddress)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_SecretsMustDiffer(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_BEARER_SECRET", "same")
	t.Setenv("GATEWAY_AUTH_SENDER_SECRET", "same")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.sender_secret must differ")
}

func TestLoadConfig_MissingSecrets(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_BEARER_SECRET", "")
	t.Setenv("GATEWAY_AUTH_SENDER_SECRET", "")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.bearer_secret is required")
	assert.Contains(t, err.Error(), "auth.sender_secret is required")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	setSecrets(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
