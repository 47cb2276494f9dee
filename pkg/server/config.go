package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes the listener and the budget /v1 requests share.
type Config struct {
	Name    string
	Version string

	Address string
	Port    int

	// RequestsPerSecond refills the token bucket; Burst caps it.
	RequestsPerSecond rate.Limit
	Burst             int

	// MaxBodyBytes bounds component and template uploads.
	MaxBodyBytes int64

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig returns the defaults, with PORT and SHUTDOWN_TIMEOUT from the
// environment applied when they parse.
func NewConfig() *Config {
	cfg := &Config{
		Name:              "tplguard",
		Version:           "dev",
		Port:              8080,
		RequestsPerSecond: 100,
		Burst:             200,
		MaxBodyBytes:      4 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg
}

// applyEnv overrides fields from lookup. SHUTDOWN_TIMEOUT takes a Go
// duration or a whole number of seconds. Unparseable values are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if raw, ok := lookup("PORT"); ok {
		if port, err := strconv.Atoi(raw); err == nil {
			c.Port = port
		}
	}
	if raw, ok := lookup("SHUTDOWN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			c.ShutdownTimeout = d
		} else if seconds, err := strconv.Atoi(raw); err == nil {
			c.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		errs = append(errs, errors.New("rate limit and burst must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the host:port the listener binds.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
