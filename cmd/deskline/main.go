package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/deptdesk/deskline/internal/analysis"
	"github.com/deptdesk/deskline/internal/call"
	"github.com/deptdesk/deskline/internal/capture"
	"github.com/deptdesk/deskline/internal/config"
	"github.com/deptdesk/deskline/internal/httpapi"
	"github.com/deptdesk/deskline/internal/knowledge"
	"github.com/deptdesk/deskline/internal/live"
	"github.com/deptdesk/deskline/internal/logging"
	"github.com/deptdesk/deskline/internal/observability"
	"github.com/deptdesk/deskline/internal/playback"
	"github.com/deptdesk/deskline/internal/record"
)

func main() {
	log := logging.Init()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config error", "error", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := record.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("call record store init failed", "error", err)
	}
	defer store.Close()

	kb := knowledge.NewDefaultBase()

	client := analysis.NewClient(cfg.GeminiAPIKey, log)
	client.OnRetry = metrics.AnalysisRetries.Inc
	pipeline := analysis.NewPipeline(client, log)

	var connector live.Connector
	if cfg.MockTransport {
		connector = live.NewMockConnector()
		log.Infow("speech transport: mock")
	} else {
		connector = live.NewGeminiConnector(live.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			WSBaseURL: cfg.GeminiWSBaseURL,
			Model:     cfg.LiveModel,
			VoiceName: cfg.VoiceName,
		}, log)
		log.Infow("speech transport: gemini live", "model", cfg.LiveModel, "voice", cfg.VoiceName)
	}

	controller := call.NewController(call.Options{
		Connector: connector,
		OpenMic:   capture.OpenMicrophone,
		OpenSink: func() (playback.Sink, error) {
			return playback.NewSpeakerSink()
		},
		Knowledge:       kb,
		Pipeline:        pipeline,
		Store:           store,
		Metrics:         metrics,
		Log:             log,
		GraceDelay:      cfg.EmergencyGraceDelay,
		AnalysisTimeout: cfg.AnalysisTimeout,
		ArchiveDir:      cfg.AudioArchive,
	})

	api := httpapi.New(controller, store, kb, pipeline, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Infow("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("listen error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// End any active call and wait for finalization so the record is
	// persisted before the store goes away.
	if err := controller.Hangup(); err == nil {
		log.Infow("active call ended for shutdown")
	}
	if err := controller.AwaitIdle(shutdownCtx); err != nil {
		log.Warnw("timed out waiting for call finalization", "error", err)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	log.Infow("shutdown complete")
}
