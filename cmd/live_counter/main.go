package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"LiveCounter/pkg/configs"
	"LiveCounter/pkg/controller/stream"
	"LiveCounter/pkg/render"
	"LiveCounter/pkg/source"

	"github.com/pingcap-incubator/tinykv/log"
	"github.com/pkg/errors"
)

func main() {
	configPath := flag.String("config", "./pkg/configs/file/live_counter.yaml", "path to the live counter config")
	flag.Parse()

	cfg, err := configs.LoadLiveCounterConfigFromYAML(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetLevelByString(cfg.LogLevel)

	src, err := newSource(cfg)
	if err != nil {
		log.Warnf("metric source unavailable, the overlay will show a placeholder: %v", err)
		src = source.Func(func(ctx context.Context) (int, error) {
			return 0, errors.New("youtube credentials are not configured")
		})
	}

	ffmpeg := &render.FFmpeg{
		Binary:       cfg.Stream.FFmpegPath,
		Endpoint:     cfg.Stream.RTMPURL,
		Key:          cfg.Stream.StreamKey,
		FontFile:     cfg.Stream.FontFile,
		Label:        cfg.Stream.Label,
		Background:   cfg.Stream.Background,
		Width:        cfg.Stream.Width,
		Height:       cfg.Stream.Height,
		FPS:          cfg.Stream.FPS,
		VideoBitrate: cfg.Stream.VideoBitrate,
		AudioBitrate: cfg.Stream.AudioBitrate,
	}
	sv := cfg.Supervisor
	cache := stream.NewMetricCache(src, sv.PollInterval, sv.FetchTimeout, sv.CacheStopWait)
	supervisor := stream.NewSupervisor(ffmpeg, sv.GraceWait, sv.KillTimeout, sv.ProbeTimeout)
	assets := func() render.Assets {
		return render.DiscoverAssets(cfg.Stream.AssetDir, cfg.Stream.AudioCandidates)
	}
	controller := stream.NewController(cache, supervisor, assets, streamFlags(cfg), stream.Options{
		StopTimeout:      sv.StopTimeout,
		Cadence:          sv.RestartCadence,
		MaxAge:           sv.MaxAge,
		LoopExitWait:     sv.StopTimeout + sv.KillTimeout + sv.GraceWait,
		RestartUnchanged: sv.RestartUnchanged,
	})

	var health *stream.HealthServer
	if cfg.GRPCAddr != "" {
		health = stream.NewHealthServer(controller)
		go func() {
			if err := health.Serve(cfg.GRPCAddr); err != nil {
				log.Errorf("gRPC health server error: %v", err)
			}
		}()
	}

	server := stream.NewStreamHTTPServer(controller, cfg.Stream.AssetDir, cfg.Stream.AudioCandidates)
	go func() {
		if err := server.Start(cfg.HttpAddr); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
	log.Infof("live counter ready, rtmp=%s key configured=%v", cfg.Stream.RTMPURL, cfg.Stream.HasStreamKey())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 2*(sv.StopTimeout+sv.KillTimeout)+sv.GraceWait)
	defer cancel()
	if err := controller.Shutdown(ctx); err != nil {
		log.Errorf("stop stream: %v", err)
	}
	cache.Stop()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	if health != nil {
		health.Stop()
	}
}

func newSource(cfg *configs.LiveCounterConfig) (source.MetricSource, error) {
	yt := cfg.YouTube
	if !yt.HasCredentials() {
		return nil, errors.New("YTB_CLIENT_ID, YTB_CLIENT_SECRET and YTB_REFRESH_TOKEN are required")
	}
	// the token source refreshes with this context for the life of the process
	return source.NewYouTubeSubscribers(context.Background(), yt.ClientID, yt.ClientSecret, yt.RefreshToken)
}

func streamFlags(cfg *configs.LiveCounterConfig) stream.ConfigFlags {
	return stream.ConfigFlags{
		HasStreamKey:          cfg.Stream.HasStreamKey(),
		StreamKeyHint:         render.Redact(cfg.Stream.StreamKey),
		RTMPURL:               cfg.Stream.RTMPURL,
		RTMPBackupURL:         cfg.Stream.RTMPBackupURL,
		HasSourceCredentials:  cfg.YouTube.HasCredentials(),
		PollInterval:          cfg.Supervisor.PollInterval,
		Cadence:               cfg.Supervisor.RestartCadence,
		StopTimeout:           cfg.Supervisor.StopTimeout,
		GraceWait:             cfg.Supervisor.GraceWait,
		RestartUnchangedValue: cfg.Supervisor.RestartUnchanged,
	}
}
