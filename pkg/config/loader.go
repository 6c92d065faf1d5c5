package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultSystemPrompt = "You are a helpful assistant for a smart mirror. Provide concise and relevant responses. Use the available functions when appropriate."

// Load reads the server configuration from config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/app/configs")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("http.port", "PORT", "APP_HTTP_PORT")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY", "APP_OPENAI_API_KEY")
	v.BindEnv("speech.api_key", "GOOGLE_API_KEY", "APP_SPEECH_API_KEY")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	setServerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mirror-voice")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 3000)
	v.SetDefault("http.body_limit", 50*1024*1024)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)

	v.SetDefault("assistant.strategy", StrategyClassifier)
	v.SetDefault("assistant.system_prompt", defaultSystemPrompt)
	v.SetDefault("assistant.history_limit", 10)
	v.SetDefault("assistant.resolve_timeout", 15*time.Second)

	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout", 20*time.Second)

	v.SetDefault("speech.provider", SpeechProviderGoogle)
	v.SetDefault("speech.language_code", "en-US")
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("speech.voice_gender", "NEUTRAL")
	v.SetDefault("speech.audio_encoding", "MP3")

	v.SetDefault("nats.subject", "mirror.server_response")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("tts_cache.enabled", true)
	v.SetDefault("tts_cache.ttl", time.Hour)
	v.SetDefault("tts_cache.max_entries", 256)

	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("opentelemetry.service_name", "mirror-voice")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://jaeger:14268/api/traces")
	v.SetDefault("opentelemetry.jaeger.sampler_param", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// LoadClient reads the device configuration from mirror.yaml and MIRROR_* env vars.
// An explicit path takes precedence over the search paths.
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mirror")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MIRROR")
	v.AutomaticEnv()
	v.BindEnv("serverUrl", "MIRROR_SERVER_URL")
	v.BindEnv("updateInterval", "MIRROR_UPDATE_INTERVAL")
	v.BindEnv("retryDelay", "MIRROR_RETRY_DELAY")
	v.BindEnv("maxRetries", "MIRROR_MAX_RETRIES")
	v.BindEnv("wakePhrases", "MIRROR_WAKE_PHRASES")
	v.BindEnv("voiceActivationEnabled", "MIRROR_VOICE_ACTIVATION")
	v.BindEnv("debugMode", "MIRROR_DEBUG")

	setClientDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("serverUrl", "http://localhost:3000")
	v.SetDefault("updateInterval", 10*time.Second)
	v.SetDefault("retryDelay", 2500*time.Millisecond)
	v.SetDefault("maxRetries", 5)
	v.SetDefault("wakePhrases", []string{"Hey Mirror", "OK Mirror"})
	v.SetDefault("voiceActivationEnabled", true)
	v.SetDefault("debugMode", false)

	v.SetDefault("captureWindow", 5*time.Second)
	v.SetDefault("listenTimeout", 8*time.Second)
	v.SetDefault("rearmDelay", time.Second)
	v.SetDefault("errorDisplay", 3*time.Second)
	v.SetDefault("requestTimeout", 30*time.Second)
	v.SetDefault("followUp", false)
}
