package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{port: 8080}
	require.NoError(t, cfg.validate())

	cfg = &Config{port: 0}
	assert.Error(t, cfg.validate())

	cfg = &Config{port: 8080, tlsCert: "cert.pem"}
	assert.Error(t, cfg.validate(), "cert without key must be rejected")

	cfg = &Config{port: 8080, tlsCert: "cert.pem", tlsKey: "key.pem"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "https", cfg.scheme())
}

func TestLoadSettingsWritesDefaultsWhenMissing(t *testing.T) {
	cfg := &Config{dataDir: t.TempDir()}

	settings := loadSettings(cfg)

	assert.Equal(t, defaultSettings().GameTitle, settings.GameTitle)
	assert.Equal(t, 2, settings.Rules.QuestionsPerPlayerSimple)

	_, err := os.Stat(filepath.Join(cfg.dataDir, settingsFile))
	assert.NoError(t, err, "defaults must be persisted")
}

func TestLoadSettingsMergesPartialFile(t *testing.T) {
	cfg := &Config{dataDir: t.TempDir()}

	partial := `{"game_title": "Friday Quiz", "points": {"simple": 25}}`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.dataDir, settingsFile), []byte(partial), 0644))

	settings := loadSettings(cfg)

	assert.Equal(t, "Friday Quiz", settings.GameTitle)
	assert.Equal(t, 25, settings.Points.Simple)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 10, settings.Points.Buzzer)
	assert.True(t, settings.ModesEnabled["estimation"])
	assert.Equal(t, "admin", settings.AdminPassword)
}

func TestLoadSettingsCorruptFileFallsBack(t *testing.T) {
	cfg := &Config{dataDir: t.TempDir()}
	path := filepath.Join(cfg.dataDir, settingsFile)
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))

	settings := loadSettings(cfg)

	assert.Equal(t, defaultSettings().GameTitle, settings.GameTitle)
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := &Config{dataDir: t.TempDir()}

	settings := defaultSettings()
	settings.GameTitle = "Round Trip"
	settings.ActiveThemes.Simple = []string{"science"}
	saveSettings(cfg, settings)

	loaded := loadSettings(cfg)
	assert.Equal(t, "Round Trip", loaded.GameTitle)
	assert.Equal(t, []string{"science"}, loaded.ActiveThemes.Simple)
}
