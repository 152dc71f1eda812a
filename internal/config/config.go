package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the assistant.
type Config struct {
	Deepgram   DeepgramConfig
	Classifier ClassifierConfig
	Audio      AudioConfig
	Speech     SpeechConfig
	Session    SessionConfig
	History    HistoryConfig
	HTTP       HTTPConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	Endpointing int
}

type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SpeechConfig struct {
	Command string
	Voice   string
	Rate    int
}

type SessionConfig struct {
	ChunkSize         int
	StreamingGrace    time.Duration
	ProcessingTimeout time.Duration
	ConfirmTTL        time.Duration
}

type HistoryConfig struct {
	Path  string
	Limit int
}

type HTTPConfig struct {
	Enabled bool
	Addr    string
	APIKey  string
}

// fileConfig mirrors the optional YAML config file. Environment
// variables override anything set here.
type fileConfig struct {
	Deepgram struct {
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		Language    string `yaml:"language"`
		SmartFormat *bool  `yaml:"smart_format"`
	} `yaml:"deepgram"`
	Classifier struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"classifier"`
	Audio struct {
		InputFormat string `yaml:"input_format"`
		InputDevice string `yaml:"input_device"`
	} `yaml:"audio"`
	Speech struct {
		Voice string `yaml:"voice"`
		Rate  int    `yaml:"rate"`
	} `yaml:"speech"`
	HTTP struct {
		Enabled *bool  `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"http"`
}

// Load resolves configuration from the optional YAML file, environment
// variables and sensible defaults. Environment always wins.
func Load() (Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, errors.New("could not determine config directory")
	}

	file, err := loadFile(envOrDefault("MURMUR_CONFIG_FILE", filepath.Join(configDir, "murmur", "config.yaml")))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      firstNonEmpty(os.Getenv("DEEPGRAM_API_KEY"), file.Deepgram.APIKey),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       firstNonEmpty(os.Getenv("DEEPGRAM_MODEL"), file.Deepgram.Model, "nova-2"),
			Language:    firstNonEmpty(os.Getenv("DEEPGRAM_LANGUAGE"), file.Deepgram.Language),
			SmartFormat: envOrFileBool("DEEPGRAM_SMART_FORMAT", file.Deepgram.SmartFormat, true),
			Endpointing: envOrDefaultInt("DEEPGRAM_ENDPOINTING_MS", 0),
		},
		Classifier: ClassifierConfig{
			APIKey:  firstNonEmpty(os.Getenv("OPENAI_API_KEY"), file.Classifier.APIKey),
			BaseURL: firstNonEmpty(os.Getenv("OPENAI_API_BASE"), file.Classifier.BaseURL),
			Model:   firstNonEmpty(os.Getenv("MURMUR_CLASSIFIER_MODEL"), file.Classifier.Model, "gpt-4o-mini"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MURMUR_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     firstNonEmpty(os.Getenv("MURMUR_AUDIO_INPUT_FORMAT"), file.Audio.InputFormat, "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("MURMUR_AUDIO_INPUT_DEVICE"),
				file.Audio.InputDevice,
				"default",
			),
			SampleRate: envOrDefaultInt("MURMUR_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("MURMUR_CHANNELS", 1),
		},
		Speech: SpeechConfig{
			Command: envOrDefault("MURMUR_SPEECH_COMMAND", "espeak-ng"),
			Voice:   firstNonEmpty(os.Getenv("MURMUR_SPEECH_VOICE"), file.Speech.Voice),
			Rate:    firstPositiveInt(envOrDefaultInt("MURMUR_SPEECH_RATE", 0), file.Speech.Rate, 170),
		},
		Session: SessionConfig{
			ChunkSize:         envOrDefaultInt("MURMUR_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace:    time.Duration(envOrDefaultInt("MURMUR_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
			ProcessingTimeout: time.Duration(envOrDefaultInt("MURMUR_PROCESSING_TIMEOUT_MS", 15000)) * time.Millisecond,
			ConfirmTTL:        time.Duration(envOrDefaultInt("MURMUR_CONFIRM_TTL_MS", 25000)) * time.Millisecond,
		},
		History: HistoryConfig{
			Path:  envOrDefault("MURMUR_HISTORY_FILE", filepath.Join(configDir, "murmur", "conversations.jsonl")),
			Limit: envOrDefaultInt("MURMUR_HISTORY_LIMIT", 20),
		},
		HTTP: HTTPConfig{
			Enabled: envOrFileBool("MURMUR_HTTP_ENABLED", file.HTTP.Enabled, false),
			Addr:    firstNonEmpty(os.Getenv("MURMUR_HTTP_ADDR"), file.HTTP.Addr, "127.0.0.1:8787"),
			APIKey:  firstNonEmpty(os.Getenv("MURMUR_HTTP_API_KEY"), file.HTTP.APIKey),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.ProcessingTimeout <= 0 {
		cfg.Session.ProcessingTimeout = 15 * time.Second
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 20
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return file, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstPositiveInt(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFileBool(key string, fileValue *bool, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	if fileValue != nil {
		return *fileValue
	}
	return fallback
}
