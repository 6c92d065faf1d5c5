package config

import (
	"fmt"
	"time"
)

// Resolver strategies.
const (
	StrategyClassifier = "classifier"
	StrategyFunction   = "function"
)

// Speech providers.
const (
	SpeechProviderGoogle = "google"
	SpeechProviderMock   = "mock"
)

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Assistant      AssistantConfig      `mapstructure:"assistant"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Speech         SpeechConfig         `mapstructure:"speech"`
	Redis          RedisConfig          `mapstructure:"redis"`
	NATS           NATSConfig           `mapstructure:"nats"`
	TTSCache       TTSCacheConfig       `mapstructure:"tts_cache"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CORS           CORSConfig           `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	BodyLimit    int           `mapstructure:"body_limit"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AssistantConfig struct {
	Strategy       string        `mapstructure:"strategy"`
	SystemPrompt   string        `mapstructure:"system_prompt"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SpeechConfig struct {
	Provider      string `mapstructure:"provider"`
	APIKey        string `mapstructure:"api_key"`
	LanguageCode  string `mapstructure:"language_code"`
	SampleRate    int    `mapstructure:"sample_rate"`
	VoiceName     string `mapstructure:"voice_name"`
	VoiceGender   string `mapstructure:"voice_gender"`
	AudioEncoding string `mapstructure:"audio_encoding"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type TTSCacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type CircuitBreakerConfig struct {
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	ServiceName string       `mapstructure:"service_name"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	switch c.Assistant.Strategy {
	case StrategyClassifier, StrategyFunction:
	default:
		return fmt.Errorf("assistant.strategy must be %q or %q, got %q", StrategyClassifier, StrategyFunction, c.Assistant.Strategy)
	}
	if c.Assistant.HistoryLimit <= 0 {
		return fmt.Errorf("assistant.history_limit must be positive, got %d", c.Assistant.HistoryLimit)
	}
	switch c.Speech.Provider {
	case SpeechProviderGoogle, SpeechProviderMock:
	default:
		return fmt.Errorf("speech.provider must be %q or %q, got %q", SpeechProviderGoogle, SpeechProviderMock, c.Speech.Provider)
	}
	if c.Speech.SampleRate <= 0 {
		return fmt.Errorf("speech.sample_rate must be positive, got %d", c.Speech.SampleRate)
	}
	return nil
}
