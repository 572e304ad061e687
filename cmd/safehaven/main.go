package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/agent"
	"github.com/hezronokwach/safe-haven/internal/alert"
	"github.com/hezronokwach/safe-haven/internal/config"
	"github.com/hezronokwach/safe-haven/internal/dialogue"
	"github.com/hezronokwach/safe-haven/internal/event"
	"github.com/hezronokwach/safe-haven/internal/history"
	"github.com/hezronokwach/safe-haven/internal/resources"
	"github.com/hezronokwach/safe-haven/internal/server"
	"github.com/hezronokwach/safe-haven/internal/session"
	"github.com/hezronokwach/safe-haven/internal/speech"
	"github.com/hezronokwach/safe-haven/internal/telegram"
	"github.com/hezronokwach/safe-haven/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "safehaven.toml", "Path to the TOML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	reloadable, err := config.NewReloadable(*configPath, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	defer reloadable.Stop()
	cfg := reloadable.Get()

	bus := event.NewBus(logger)

	dlg := dialogue.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)

	primary := speech.NewElevenLabs(cfg.ElevenLabs.APIKey, cfg.Voices)
	var local speech.Synthesizer
	if l := speech.NewLocal(""); l.Available() {
		local = l
	} else {
		logger.Warn().Msg("no local synthesizer on this host, network TTS only")
	}
	synth := speech.NewFallback(primary, local, cfg.ElevenLabs.Disabled, logger)

	transcriber := transcribe.NewBatchTranscriber(cfg.ElevenLabs.APIKey, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)

	directory, err := resources.Open(filepath.Join(cfg.DataDir, "safehaven.db"), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening helpline directory")
	}

	alerts, err := alert.Connect(cfg.MQTT.BrokerURL, cfg.MQTT.Topic, cfg.MQTT.Username, cfg.MQTT.Password, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("alert broker unreachable, alerting disabled")
		alerts = nil
	}
	defer alerts.Close()

	// Emergency activations fan out to the broker regardless of surface.
	bus.Subscribe([]string{event.TypeEmergencyActivated}, func(evt event.Event) {
		a := alert.Alert{SessionID: evt.SessionID, Timestamp: evt.Timestamp}
		if payload, ok := evt.Payload.(map[string]any); ok {
			if reason, ok := payload["reason"].(string); ok {
				a.Reason = reason
			}
			if surface, ok := payload["surface"].(string); ok {
				a.Surface = surface
			}
		}
		go alerts.Publish(a)
	})

	sessions := session.NewManager(session.Deps{
		Dialogue:    dlg,
		Synthesizer: synth,
		History:     history.NewMemoryStore(),
		Bus:         bus,
		Provider:    session.DirectPipeline,
		Voice:       speech.VoiceProfile{Gender: "female", Language: "en"},
		Logger:      logger,
	})
	defer sessions.Shutdown()

	var telegramHandler http.Handler
	if cfg.Telegram.BotToken != "" {
		var store history.Store = history.NewMemoryStore()
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			store = history.NewRedisStore(client, history.DefaultTTL)
		} else {
			logger.Warn().Msg("no redis configured, telegram history is process-local")
		}
		telegramHandler = telegram.NewHandler(cfg.Telegram.BotToken, dlg, store, alerts, logger)
	}

	var caller *agent.Caller
	if cfg.Agent.APIKey != "" && cfg.Agent.BaseURL != "" {
		caller = agent.NewCaller(cfg.Agent.APIKey, cfg.Agent.BaseURL)
	}

	srv := server.New(server.Config{
		Addr:        cfg.ListenAddr,
		Dialogue:    dlg,
		Synthesizer: synth,
		Transcriber: transcriber,
		Directory:   directory,
		Sessions:    sessions,
		Bus:         bus,
		Telegram:    telegramHandler,
		Agent:       caller,
		AvatarURL:   cfg.Avatar.RendererURL,
		Logger:      logger,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("shutting down")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}
