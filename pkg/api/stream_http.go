package api

// ErrorResponseHTTP is returned by every control route on failure
type ErrorResponseHTTP struct {
	Success      bool   `json:"success"`
	Kind         string `json:"kind"`
	ErrorMessage string `json:"error_message"`
}

// StartStreamResponseHTTP
type StartStreamResponseHTTP struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	PID       int    `json:"pid"`
	Value     int    `json:"value"`
	RTMPURL   string `json:"rtmp_url"`
	StreamKey string `json:"stream_key"` // redacted
}

// StopStreamResponseHTTP
type StopStreamResponseHTTP struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Forced    bool   `json:"forced"`
}

type ProcessStatsHTTP struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// StreamStatusHTTP is the status view. It never carries secrets.
type StreamStatusHTTP struct {
	State         string            `json:"state"`
	IsRunning     bool              `json:"is_running"`
	SessionID     string            `json:"session_id,omitempty"`
	StartedAt     int64             `json:"started_at,omitempty"`
	PID           int               `json:"pid,omitempty"`
	Value         int               `json:"value"`
	Restarts      int64             `json:"restarts"`
	RTMPURL       string            `json:"rtmp_url"`
	HasStreamKey  bool              `json:"has_stream_key"`
	CacheRunning  bool              `json:"cache_running"`
	FetchFailures uint64            `json:"fetch_failures"`
	LastFetchErr  string            `json:"last_fetch_error,omitempty"`
	Process       *ProcessStatsHTTP `json:"process,omitempty"`
	HostCPU       float64           `json:"host_cpu_percent"`
	HostMem       float64           `json:"host_mem_percent"`
}

// StreamConfigHTTP
type StreamConfigHTTP struct {
	RTMPPrimary          string `json:"rtmp_primary"`
	RTMPBackup           string `json:"rtmp_backup"`
	HasStreamKey         bool   `json:"has_stream_key"`
	HasSourceCredentials bool   `json:"has_source_credentials"`
	PollInterval         string `json:"poll_interval"`
	RestartCadence       string `json:"restart_cadence"`
	StopTimeout          string `json:"stop_timeout"`
	GraceWait            string `json:"grace_wait"`
	RestartUnchanged     bool   `json:"restart_unchanged"`
}

// MetricResponseHTTP
type MetricResponseHTTP struct {
	Value     int   `json:"value"`
	FromCache bool  `json:"from_cache"`
	FetchedAt int64 `json:"fetched_at"`
}

// TestConnectivityResponseHTTP
type TestConnectivityResponseHTTP struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ReturnCode int    `json:"returncode"`
	Details    string `json:"details,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type AudioFileHTTP struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Size      string `json:"size"`
}

// AudioStatusResponseHTTP
type AudioStatusResponseHTTP struct {
	AudioFiles []AudioFileHTTP `json:"audio_files"`
	HasAudio   bool            `json:"has_audio"`
}
