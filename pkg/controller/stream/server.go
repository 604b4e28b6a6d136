package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"LiveCounter/pkg/api"
	"LiveCounter/pkg/render"

	"github.com/pingcap-incubator/tinykv/log"
)

// StreamHTTPServer exposes the controller over HTTP
type StreamHTTPServer struct {
	controller      *Controller
	audioDir        string
	audioCandidates []string
	server          *http.Server
}

func NewStreamHTTPServer(controller *Controller, audioDir string, audioCandidates []string) *StreamHTTPServer {
	return &StreamHTTPServer{
		controller:      controller,
		audioDir:        audioDir,
		audioCandidates: audioCandidates,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to a status code
func writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case KindAlreadyActive, KindBusy:
		code = http.StatusConflict
	case KindConfigMissing:
		code = http.StatusPreconditionFailed
	case KindLaunchFailed, KindFetchFailed:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, api.ErrorResponseHTTP{
		Success:      false,
		Kind:         string(kind),
		ErrorMessage: err.Error(),
	})
}

// POST /api/v1/stream/start
func (s *StreamHTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	info, err := s.controller.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := s.controller.Config()
	writeJSON(w, http.StatusOK, api.StartStreamResponseHTTP{
		Success:   true,
		Message:   "stream started",
		SessionID: info.ID,
		PID:       info.PID,
		Value:     info.Value,
		RTMPURL:   cfg.RTMPURL,
		StreamKey: cfg.StreamKeyHint,
	})
}

// POST /api/v1/stream/stop
func (s *StreamHTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	info, err := s.controller.Stop(r.Context())
	if IsKind(err, KindNotActive) {
		writeJSON(w, http.StatusOK, api.StopStreamResponseHTTP{Success: true, Message: "nothing running"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StopStreamResponseHTTP{
		Success:   true,
		Message:   "stream stopped",
		SessionID: info.ID,
		Forced:    info.Forced,
	})
}

// GET /api/v1/stream/status
func (s *StreamHTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.controller.Status()
	resp := api.StreamStatusHTTP{
		State:         st.State.String(),
		IsRunning:     st.Alive,
		SessionID:     st.SessionID,
		PID:           st.PID,
		Value:         st.Value,
		Restarts:      st.Restarts,
		RTMPURL:       st.Config.RTMPURL,
		HasStreamKey:  st.Config.HasStreamKey,
		CacheRunning:  st.CacheRunning,
		FetchFailures: st.Cache.Failures,
		LastFetchErr:  st.Cache.LastError,
		HostCPU:       st.HostCPU,
		HostMem:       st.HostMem,
	}
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.Unix()
	}
	if st.Process != nil {
		resp.Process = &api.ProcessStatsHTTP{CPUPercent: st.Process.CPUPercent, RSSBytes: st.Process.RSSBytes}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/stream/config
func (s *StreamHTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.controller.Config()
	writeJSON(w, http.StatusOK, api.StreamConfigHTTP{
		RTMPPrimary:          cfg.RTMPURL,
		RTMPBackup:           cfg.RTMPBackupURL,
		HasStreamKey:         cfg.HasStreamKey,
		HasSourceCredentials: cfg.HasSourceCredentials,
		PollInterval:         cfg.PollInterval.String(),
		RestartCadence:       cfg.Cadence.String(),
		StopTimeout:          cfg.StopTimeout.String(),
		GraceWait:            cfg.GraceWait.String(),
		RestartUnchanged:     cfg.RestartUnchangedValue,
	})
}

// GET /api/v1/metric
func (s *StreamHTTPServer) handleMetric(w http.ResponseWriter, r *http.Request) {
	reading, err := s.controller.CurrentMetric(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MetricResponseHTTP{
		Value:     reading.Value,
		FromCache: reading.FromCache,
		FetchedAt: reading.FetchedAt.Unix(),
	})
}

// POST /api/v1/stream/test
func (s *StreamHTTPServer) handleTestConnectivity(w http.ResponseWriter, r *http.Request) {
	res, err := s.controller.TestConnectivity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := api.TestConnectivityResponseHTTP{
		Success:    res.Success,
		ReturnCode: res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
	}
	code := http.StatusOK
	if res.Success {
		resp.Message = "connectivity test succeeded"
	} else {
		resp.Message = "connectivity test failed"
		resp.Details = res.Output
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

// GET /api/v1/audio
func (s *StreamHTTPServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	files := render.ListAudio(s.audioDir, s.audioCandidates)
	resp := api.AudioStatusResponseHTTP{
		AudioFiles: make([]api.AudioFileHTTP, 0, len(files)),
		HasAudio:   len(files) > 0,
	}
	for _, f := range files {
		resp.AudioFiles = append(resp.AudioFiles, api.AudioFileHTTP{
			Filename:  f.Name,
			SizeBytes: f.Size,
			Size:      fmt.Sprintf("%.2f MB", float64(f.Size)/1024/1024),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /health
func (s *StreamHTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Handler returns the route table
func (s *StreamHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/stream/start", s.handleStart)
	mux.HandleFunc("POST /api/v1/stream/stop", s.handleStop)
	mux.HandleFunc("GET /api/v1/stream/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stream/config", s.handleConfig)
	mux.HandleFunc("POST /api/v1/stream/test", s.handleTestConnectivity)
	mux.HandleFunc("GET /api/v1/metric", s.handleMetric)
	mux.HandleFunc("GET /api/v1/audio", s.handleAudio)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start serves HTTP until Shutdown is called
func (s *StreamHTTPServer) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("Stream HTTP server listening on %s", addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *StreamHTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
