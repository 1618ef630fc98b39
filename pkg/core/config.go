package core

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains the tuning knobs of the connection supervisor.
type Config struct {
	// ConnectTimeout bounds one dial plus handshake.
	ConnectTimeout time.Duration `json:"connect_timeout" validate:"min=1ms"`
	// IdleTimeout is the longest an open session may stay silent.
	IdleTimeout time.Duration `json:"idle_timeout" validate:"min=1ms"`

	BackoffBaseWait   time.Duration `json:"backoff_base_wait" validate:"min=1ms"`
	BackoffMaxWait    time.Duration `json:"backoff_max_wait" validate:"min=1ms"`
	BackoffMultiplier float64       `json:"backoff_multiplier" validate:"gte=1"`

	// ReconnectRequests connection attempts are allowed per ReconnectPeriod
	// regardless of backoff, so a server that closes at once cannot cause a hot loop.
	ReconnectRequests int           `json:"reconnect_requests" validate:"min=1"`
	ReconnectPeriod   time.Duration `json:"reconnect_period" validate:"min=1ms"`

	// PumpInterval is the tick of the background callback pump.
	PumpInterval time.Duration `json:"pump_interval" validate:"min=1ms"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// DefaultConfig returns a Config initialized with the default timeouts.
// Default values: 10s connect timeout, 60s idle timeout, 1s-30s doubling backoff,
// 3 attempts per 5s, 100ms pump tick.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 10 * time.Second,
		IdleTimeout:    60 * time.Second,

		BackoffBaseWait:   1 * time.Second,
		BackoffMaxWait:    30 * time.Second,
		BackoffMultiplier: 2.0,

		ReconnectRequests: 3,
		ReconnectPeriod:   5 * time.Second,

		PumpInterval: 100 * time.Millisecond,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks field bounds and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.BackoffMaxWait < c.BackoffBaseWait {
		return errors.New("BackoffMaxWait must not be below BackoffBaseWait")
	}
	return nil
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

// ValidateAddress reports whether addr is an absolute ws:// or wss:// URL.
func ValidateAddress(addr string) error {
	if err := validate.Var(addr, "required,url"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	return nil
}
