package configs

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadLiveCounterConfigFromYAML loads the config file, applies defaults and
// environment overrides, then validates it. An empty path skips the file.
func LoadLiveCounterConfigFromYAML(filePath string) (*LiveCounterConfig, error) {
	var config LiveCounterConfig
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", filePath)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", filePath)
		}
	}
	config.ApplyDefaults()
	if err := ApplyEnvOverrides(&config, ".env"); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnvOverrides overlays YTB_* and PORT from the environment and from an
// optional dotenv file. The process environment wins over the file.
func ApplyEnvOverrides(config *LiveCounterConfig, dotenvPath string) error {
	v := viper.New()
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			v.SetConfigFile(dotenvPath)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "read %s", dotenvPath)
			}
		}
	}
	v.AutomaticEnv()

	override := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override("YTB_CLIENT_ID", &config.YouTube.ClientID)
	override("YTB_CLIENT_SECRET", &config.YouTube.ClientSecret)
	override("YTB_REFRESH_TOKEN", &config.YouTube.RefreshToken)
	override("YTB_STREAM_KEY", &config.Stream.StreamKey)
	override("YTB_RTMP_PRIMARY", &config.Stream.RTMPURL)
	override("YTB_RTMP_BACKUP", &config.Stream.RTMPBackupURL)
	if port := v.GetString("PORT"); port != "" {
		config.HttpAddr = ":" + port
	}
	return nil
}

// Validate rejects configs the supervisor cannot run with. A missing stream
// key is not an error here: only starting a stream requires it.
func (c *LiveCounterConfig) Validate() error {
	sv := c.Supervisor
	if sv.PollInterval < 0 || sv.RestartCadence < 0 || sv.GraceWait < 0 ||
		sv.StopTimeout < 0 || sv.KillTimeout < 0 || sv.ProbeTimeout < 0 {
		return errors.New("supervisor durations must not be negative")
	}
	if sv.MaxAge < sv.PollInterval {
		return errors.Errorf("max_age (%s) must be at least poll_interval (%s)", sv.MaxAge, sv.PollInterval)
	}
	if c.Stream.Width <= 0 || c.Stream.Height <= 0 || c.Stream.FPS <= 0 {
		return errors.New("stream width, height and fps must be positive")
	}
	return nil
}
