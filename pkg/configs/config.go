package configs

import "time"

// LiveCounterConfig is the startup config of the live counter daemon
type LiveCounterConfig struct {
	HttpAddr   string           `yaml:"http_addr"`
	GRPCAddr   string           `yaml:"grpc_addr"`
	LogLevel   string           `yaml:"log_level"`
	Stream     StreamConfig     `yaml:"stream"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// StreamConfig describes the RTMP target and how the overlay is rendered
type StreamConfig struct {
	RTMPURL         string   `yaml:"rtmp_url"`
	RTMPBackupURL   string   `yaml:"rtmp_backup_url"`
	StreamKey       string   `yaml:"stream_key"`
	FFmpegPath      string   `yaml:"ffmpeg_path"`
	FontFile        string   `yaml:"font_file"`
	Label           string   `yaml:"label"`
	Background      string   `yaml:"background"`
	Width           int      `yaml:"width"`
	Height          int      `yaml:"height"`
	FPS             int      `yaml:"fps"`
	VideoBitrate    string   `yaml:"video_bitrate"`
	AudioBitrate    string   `yaml:"audio_bitrate"`
	AssetDir        string   `yaml:"asset_dir"`
	AudioCandidates []string `yaml:"audio_candidates"`
}

// YouTubeConfig holds the OAuth2 credentials of the metric source
type YouTubeConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// SupervisorConfig holds every timing knob of the stream supervisor
type SupervisorConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MaxAge           time.Duration `yaml:"max_age"`
	RestartCadence   time.Duration `yaml:"restart_cadence"`
	RestartUnchanged bool          `yaml:"restart_unchanged"`
	GraceWait        time.Duration `yaml:"grace_wait"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
	KillTimeout      time.Duration `yaml:"kill_timeout"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	CacheStopWait    time.Duration `yaml:"cache_stop_wait"`
}

const (
	DefaultRTMPURL = "rtmp://a.rtmp.youtube.com/live2"
	DefaultPort    = "5000"
)

// HasStreamKey reports whether a real stream key is configured
func (c *StreamConfig) HasStreamKey() bool {
	return c.StreamKey != "" && c.StreamKey != "your_stream_key_here"
}

// HasCredentials reports whether the YouTube source can authenticate
func (c *YouTubeConfig) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// ApplyDefaults fills zero values
func (c *LiveCounterConfig) ApplyDefaults() {
	if c.HttpAddr == "" {
		c.HttpAddr = ":" + DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	s := &c.Stream
	if s.RTMPURL == "" {
		s.RTMPURL = DefaultRTMPURL
	}
	if s.FFmpegPath == "" {
		s.FFmpegPath = "ffmpeg"
	}
	if s.FontFile == "" {
		s.FontFile = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	}
	if s.Label == "" {
		s.Label = "YouTube Subscribers"
	}
	if s.Background == "" {
		s.Background = "#1a1a1a"
	}
	if s.Width == 0 {
		s.Width = 1920
	}
	if s.Height == 0 {
		s.Height = 1080
	}
	if s.FPS == 0 {
		s.FPS = 30
	}
	if s.VideoBitrate == "" {
		s.VideoBitrate = "2500k"
	}
	if s.AudioBitrate == "" {
		s.AudioBitrate = "128k"
	}
	if s.AssetDir == "" {
		s.AssetDir = "."
	}
	if len(s.AudioCandidates) == 0 {
		s.AudioCandidates = []string{"audio.mp3", "background.mp3", "music.mp3", "stream_audio.mp3"}
	}
	sv := &c.Supervisor
	setDuration(&sv.PollInterval, 10*time.Second)
	setDuration(&sv.FetchTimeout, 10*time.Second)
	setDuration(&sv.MaxAge, 30*time.Second)
	setDuration(&sv.RestartCadence, 10*time.Second)
	setDuration(&sv.GraceWait, 3*time.Second)
	setDuration(&sv.StopTimeout, 5*time.Second)
	setDuration(&sv.KillTimeout, 5*time.Second)
	setDuration(&sv.ProbeTimeout, 20*time.Second)
	setDuration(&sv.CacheStopWait, 2*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
