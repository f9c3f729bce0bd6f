package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Daskott/kinfolk/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigInDevMode(t *testing.T) {
	config, err := loadServerConfig("", true)
	require.NoError(t, err)

	assert.Equal(t, "passphrase", config.Sqlite.PassPhrase)
	assert.Equal(t, shared.SQLITE_STORAGE, config.Kinfolk.Storage)
	assert.Equal(t, 5000, config.Kinfolk.Listener.Port)
	assert.Equal(t, 3, config.Kinfolk.Tree.DefaultDepth)
	assert.Equal(t, "Asia/Kolkata", config.Kinfolk.Cron.TimeZone)
	assert.Contains(t, config.Kinfolk.PrivateKeyPem, "BEGIN PRIVATE KEY")
	assert.Equal(t, false, config.Google.Storage.EnableSqliteBackupAndSync)
}

func TestLoadServerConfigFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "server.yml")
	writeConfig := func(content string) {
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))
	}

	writeConfig(`
kinfolk:
  privateKeyPem: "pem"
  storage: memory
  listener:
    port: 8080
sqlite:
  passPhrase: secret
`)
	config, err := loadServerConfig(configFile, false)
	require.NoError(t, err)
	assert.Equal(t, shared.MEMORY_STORAGE, config.Kinfolk.Storage)
	assert.Equal(t, 720, config.Kinfolk.TokenTTLHours)
	assert.Equal(t, "UTC", config.Kinfolk.Cron.TimeZone)

	writeConfig(`
kinfolk:
  privateKeyPem: "pem"
  storage: mongodb
  listener:
    port: 8080
sqlite:
  passPhrase: secret
`)
	_, err = loadServerConfig(configFile, false)
	assert.Error(t, err)

	writeConfig(`
kinfolk:
  privateKeyPem: "pem"
  listener:
    port: 8080
sqlite:
  passPhrase: secret
twilio:
  accountSid: AC123
`)
	_, err = loadServerConfig(configFile, false)
	assert.Error(t, err, "twilio needs a token and a messaging service")

	_, err = loadServerConfig(filepath.Join(t.TempDir(), "missing.yml"), false)
	assert.Error(t, err)
}
