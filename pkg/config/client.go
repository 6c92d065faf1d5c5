package config

import (
	"fmt"
	"net/url"
	"time"
)

// ClientConfig configures the mirror device: the voice session and the
// connection supervisor that watches the server.
type ClientConfig struct {
	ServerURL              string        `mapstructure:"serverUrl"`
	UpdateInterval         time.Duration `mapstructure:"updateInterval"`
	RetryDelay             time.Duration `mapstructure:"retryDelay"`
	MaxRetries             int           `mapstructure:"maxRetries"`
	WakePhrases            []string      `mapstructure:"wakePhrases"`
	VoiceActivationEnabled bool          `mapstructure:"voiceActivationEnabled"`
	DebugMode              bool          `mapstructure:"debugMode"`

	CaptureWindow  time.Duration `mapstructure:"captureWindow"`
	ListenTimeout  time.Duration `mapstructure:"listenTimeout"`
	RearmDelay     time.Duration `mapstructure:"rearmDelay"`
	ErrorDisplay   time.Duration `mapstructure:"errorDisplay"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	FollowUp       bool          `mapstructure:"followUp"`
}

func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("serverUrl is not an absolute URL: %q", c.ServerURL)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("updateInterval must be positive")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retryDelay must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must not be negative")
	}
	if c.VoiceActivationEnabled && len(c.WakePhrases) == 0 {
		return fmt.Errorf("wakePhrases must not be empty when voice activation is enabled")
	}
	if c.CaptureWindow <= 0 {
		return fmt.Errorf("captureWindow must be positive")
	}
	if c.ErrorDisplay <= 0 {
		return fmt.Errorf("errorDisplay must be positive")
	}
	return nil
}
