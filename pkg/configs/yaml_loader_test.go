package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"YTB_CLIENT_ID", "YTB_CLIENT_SECRET", "YTB_REFRESH_TOKEN",
		"YTB_STREAM_KEY", "YTB_RTMP_PRIMARY", "YTB_RTMP_BACKUP", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadSampleConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadLiveCounterConfigFromYAML("file/live_counter.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HttpAddr)
	assert.Equal(t, ":5001", cfg.GRPCAddr)
	assert.Equal(t, 10*time.Second, cfg.Supervisor.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Supervisor.MaxAge)
	assert.Equal(t, 20*time.Second, cfg.Supervisor.ProbeTimeout)
	assert.False(t, cfg.Supervisor.RestartUnchanged)
	assert.Len(t, cfg.Stream.AudioCandidates, 4)
	assert.False(t, cfg.Stream.HasStreamKey())
	assert.False(t, cfg.YouTube.HasCredentials())
}

func TestDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadLiveCounterConfigFromYAML("")
	require.NoError(t, err)

	assert.Equal(t, ":"+DefaultPort, cfg.HttpAddr)
	assert.Equal(t, DefaultRTMPURL, cfg.Stream.RTMPURL)
	assert.Equal(t, "ffmpeg", cfg.Stream.FFmpegPath)
	assert.Equal(t, 5*time.Second, cfg.Supervisor.StopTimeout)
	assert.Equal(t, 3*time.Second, cfg.Supervisor.GraceWait)
	assert.Equal(t, 2*time.Second, cfg.Supervisor.CacheStopWait)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("YTB_STREAM_KEY", "abcd-efgh-ijkl")
	t.Setenv("YTB_CLIENT_ID", "id")
	t.Setenv("YTB_CLIENT_SECRET", "secret")
	t.Setenv("YTB_REFRESH_TOKEN", "refresh")
	t.Setenv("YTB_RTMP_PRIMARY", "rtmp://example.test/live")
	t.Setenv("PORT", "8088")

	cfg := &LiveCounterConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, ApplyEnvOverrides(cfg, ""))

	assert.True(t, cfg.Stream.HasStreamKey())
	assert.True(t, cfg.YouTube.HasCredentials())
	assert.Equal(t, "rtmp://example.test/live", cfg.Stream.RTMPURL)
	assert.Equal(t, ":8088", cfg.HttpAddr)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("YTB_STREAM_KEY=from-file-key\nYTB_RTMP_BACKUP=rtmp://backup.test/live\n"), 0o600))

	cfg := &LiveCounterConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, ApplyEnvOverrides(cfg, path))
	assert.Equal(t, "from-file-key", cfg.Stream.StreamKey)
	assert.Equal(t, "rtmp://backup.test/live", cfg.Stream.RTMPBackupURL)

	// the process environment wins over the file
	t.Setenv("YTB_STREAM_KEY", "from-env-key")
	cfg = &LiveCounterConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, ApplyEnvOverrides(cfg, path))
	assert.Equal(t, "from-env-key", cfg.Stream.StreamKey)
}

func TestPlaceholderKeyIsMissing(t *testing.T) {
	s := StreamConfig{StreamKey: "your_stream_key_here"}
	assert.False(t, s.HasStreamKey())
}

func TestValidate(t *testing.T) {
	cfg := &LiveCounterConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Supervisor.MaxAge = time.Second
	assert.Error(t, cfg.Validate())

	cfg.ApplyDefaults()
	cfg.Supervisor.MaxAge = 30 * time.Second
	cfg.Supervisor.StopTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("supervisor:\n  poll_interval: [not a duration\n"), 0o600))
	_, err := LoadLiveCounterConfigFromYAML(path)
	assert.Error(t, err)
}
