package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAppliedWhenFieldsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_instruments: 9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.MaxInstruments, "explicit value should be kept")
	assert.Equal(t, 1024, cfg.QueueCapacity, "unset field should fall back to default")
	assert.Equal(t, 60*time.Second, time.Duration(cfg.ReconnectMax))
	assert.Equal(t, "wss://fstream.binance.com/ws", cfg.BinanceWSURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadAcceptsDottedVenueURLKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "binance.ws_url: wss://example.test/binance\nlog_format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://example.test/binance", cfg.BinanceWSURL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "wss://stream.bybit.com/v5/public/linear", cfg.BybitWSURL, "unset sibling key keeps its default")
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDurationAcceptsStringAndSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "connect_timeout: 5s\nkeepalive_silence: 15\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, time.Duration(cfg.ConnectTimeout))
	assert.Equal(t, 15*time.Second, time.Duration(cfg.KeepaliveSilence))
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_instruments: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWindowDuration(t *testing.T) {
	cfg := Default()
	cfg.WindowSeconds = 90
	assert.Equal(t, 90*time.Second, cfg.WindowDuration())
}
