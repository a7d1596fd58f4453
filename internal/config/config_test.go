package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5173", cfg.Server.ClientOrigin)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 168, cfg.JWT.ExpireHours)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.AI.TextModel)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.AI.BaseURL)
	assert.Equal(t, "none", cfg.Mail.Transport)
	assert.False(t, cfg.Diagnostic())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "8081"
  mode: debug
database:
  driver: SQLite
  dsn: "file::memory:"
jwt:
  secret: from-file
ai:
  timeout: 5s
mail:
  transport: SMTP
  host: smtp.example.com
  username: u
  password: p
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DOUBTIQ_JWT_SECRET", "from-env")
	t.Setenv("DOUBTIQ_AI_API_KEY", "key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.True(t, cfg.Diagnostic())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "key", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "smtp", cfg.Mail.Transport)
	assert.True(t, cfg.Mail.MailConfigured())
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
