// Package config loads process configuration: a TOML file, environment
// overrides for credentials, and hot reload of the file while running.
// Credentials are resolved once at load and never mutated at runtime.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/hezronokwach/safe-haven/internal/speech"
)

// Config is the full process configuration. Precedence per field:
// environment variable, then the TOML file, then the hardcoded default.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DataDir    string `toml:"data_dir"`

	Gemini     GeminiConfig     `toml:"gemini"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	Voices     speech.VoiceMap  `toml:"voices"`
	Redis      RedisConfig      `toml:"redis"`
	Telegram   TelegramConfig   `toml:"telegram"`
	MQTT       MQTTConfig       `toml:"mqtt"`
	Agent      AgentConfig      `toml:"agent"`
	Avatar     AvatarConfig     `toml:"avatar"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type ElevenLabsConfig struct {
	APIKey string `toml:"api_key"`
	// Disabled forces the local synthesizer for every call.
	Disabled bool `toml:"disabled"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

type MQTTConfig struct {
	BrokerURL string `toml:"broker_url"`
	Topic     string `toml:"topic"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

type AgentConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type AvatarConfig struct {
	RendererURL string `toml:"renderer_url"`
}

// Load reads the TOML file at path, applies environment overrides and fills
// defaults. A missing file is not an error; env and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.ListenAddr, "SAFEHAVEN_LISTEN_ADDR")
	override(&cfg.DataDir, "SAFEHAVEN_DATA_DIR")
	override(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	override(&cfg.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	override(&cfg.MQTT.BrokerURL, "MQTT_BROKER_URL")
	override(&cfg.Agent.APIKey, "AGENT_API_KEY")
}

func override(field *string, env string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
}

// Reloadable wraps a Config with hot reload: Get always returns the latest
// loaded snapshot. Credential fields keep their process-start values on
// reload so a truncated file cannot blank them mid-run.
type Reloadable struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	watcher  *FileWatcher
	onReload func(*Config)
}

// reload re-reads the file on a watcher event. A config that fails to parse
// is logged and discarded; the running snapshot stays untouched. Credential
// fields are pinned to their boot-time values.
func (r *Reloadable) reload() {
	fresh, err := Load(r.path)
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("config reload rejected, keeping previous")
		return
	}
	r.mu.Lock()
	fresh.Gemini.APIKey = r.current.Gemini.APIKey
	fresh.ElevenLabs.APIKey = r.current.ElevenLabs.APIKey
	fresh.Telegram.BotToken = r.current.Telegram.BotToken
	fresh.Agent.APIKey = r.current.Agent.APIKey
	r.current = fresh
	r.mu.Unlock()
	log.Info().Str("path", r.path).Msg("config reloaded")
	if r.onReload != nil {
		r.onReload(fresh)
	}
}

// NewReloadable loads the config and starts watching its directory.
// onReload, if non-nil, runs after each successful reload.
func NewReloadable(path string, onReload func(*Config)) (*Reloadable, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	r := &Reloadable{path: path, current: cfg}

	r.onReload = onReload

	watcher, err := NewFileWatcher(WatcherConfig{
		Handler: r.reload,
		Filter:  func(name string) bool { return name == path },
	})
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		// Watching a file that does not exist yet is fine; defaults apply.
		watcher.Stop()
		watcher = nil
	}
	r.watcher = watcher
	return r, nil
}

// Get returns the current config snapshot.
func (r *Reloadable) Get() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Stop ends the file watcher.
func (r *Reloadable) Stop() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
}
