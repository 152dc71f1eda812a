package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"murmur/internal/audio"
	"murmur/internal/classify"
	"murmur/internal/config"
	"murmur/internal/detect"
	"murmur/internal/domain"
	"murmur/internal/executor"
	"murmur/internal/gate"
	"murmur/internal/guard"
	"murmur/internal/history"
	"murmur/internal/httpapi"
	"murmur/internal/notify"
	"murmur/internal/ports"
	"murmur/internal/providers/deepgram"
	"murmur/internal/resolve"
	"murmur/internal/speech"
	"murmur/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.VoiceSessionController
	Gate       *gate.Gate
	History    *history.Store
	Config     config.Config

	httpServer *http.Server
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return Services{}, err
	}

	executionGate := gate.NewGate(store, cfg.Session.ConfirmTTL)

	classifier := classify.New(classify.Config{
		APIKey:  cfg.Classifier.APIKey,
		BaseURL: cfg.Classifier.BaseURL,
		Model:   cfg.Classifier.Model,
	})

	resolver := resolve.NewResolver(detect.NewDetector(), guard.NewGuard(), classifier)
	desktop := executor.NewDesktop(clipboard)

	meta := ports.ClassifyContext{OS: runtime.GOOS, Mode: "command"}
	if recent, err := store.Recent(context.Background(), cfg.History.Limit); err == nil {
		meta.History = recent
	}

	controller := usecase.NewVoiceSessionController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			Endpointing: cfg.Deepgram.Endpointing,
		}),
		resolver,
		executionGate,
		desktop,
		speech.NewESpeak(cfg.Speech.Command, cfg.Speech.Voice, cfg.Speech.Rate),
		notify.NewEarcons(),
		eventSink,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			Classify:          meta,
			ChunkSize:         cfg.Session.ChunkSize,
			StreamingGrace:    cfg.Session.StreamingGrace,
			ProcessingTimeout: cfg.Session.ProcessingTimeout,
		},
	)

	executionGate.OnExpire(func(domain.PendingAction) { controller.ConfirmationExpired() })

	services := Services{
		Controller: controller,
		Gate:       executionGate,
		History:    store,
		Config:     cfg,
	}

	if cfg.HTTP.Enabled {
		api := httpapi.NewServer(resolver, executionGate, desktop, meta, cfg.HTTP.APIKey)
		services.httpServer = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := services.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http api stopped", "err", err)
			}
		}()
	}

	return services, nil
}

// Shutdown stops background services.
func (s Services) Shutdown(ctx context.Context) {
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}
}
