package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective, validated configuration.
type Config struct {
	Files       Files       `yaml:"files" json:"files"`
	Delay       Delay       `yaml:"delay" json:"delay"`
	Session     Session     `yaml:"session" json:"session"`
	Attempt     Attempt     `yaml:"attempt" json:"attempt"`
	Diagnostics Diagnostics `yaml:"diagnostics" json:"diagnostics"`
	State       State       `yaml:"state" json:"state"`
	Log         Log         `yaml:"log" json:"log"`
}

// Files are the three ledger files.
type Files struct {
	Invitation string `yaml:"invitation" json:"invitation"`
	Used       string `yaml:"used" json:"used"`
	Error      string `yaml:"error" json:"error"`
}

type Delay struct {
	InterAttempt time.Duration `yaml:"inter-attempt" json:"inter_attempt"`
	Grace        time.Duration `yaml:"grace" json:"grace"`
}

// Session controls the browser and the login handshake.
type Session struct {
	BaseURL         string        `yaml:"base-url" json:"base_url"`
	DashboardURL    string        `yaml:"dashboard-url" json:"dashboard_url"`
	AuthTimeout     time.Duration `yaml:"auth-timeout" json:"auth_timeout"`
	Headless        bool          `yaml:"headless" json:"headless"`
	InstallBrowsers bool          `yaml:"install-browsers" json:"install_browsers"`
	Settle          time.Duration `yaml:"settle" json:"settle"`
	ActionTimeout   time.Duration `yaml:"action-timeout" json:"action_timeout"`
}

// Attempt bounds the waits inside one redemption.
type Attempt struct {
	InputTimeout   time.Duration `yaml:"input-timeout" json:"input_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm-timeout" json:"confirm_timeout"`
	ClickTimeout   time.Duration `yaml:"click-timeout" json:"click_timeout"`
	Settle         time.Duration `yaml:"settle" json:"settle"`
	SuccessTimeout time.Duration `yaml:"success-timeout" json:"success_timeout"`
	PollInterval   time.Duration `yaml:"poll-interval" json:"poll_interval"`
}

type Diagnostics struct {
	Dir string `yaml:"dir" json:"dir"`
}

type State struct {
	Dir string `yaml:"dir" json:"dir"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load builds the effective configuration from the initialized layers and
// validates it.
func Load() (Config, error) {
	if v == nil {
		if err := Initialize(); err != nil {
			return Config{}, err
		}
	}
	cfg := Config{
		Files: Files{
			Invitation: GetString("files.invitation"),
			Used:       GetString("files.used"),
			Error:      GetString("files.error"),
		},
		Delay: Delay{
			InterAttempt: GetDuration("delay.inter-attempt"),
			Grace:        GetDuration("delay.grace"),
		},
		Session: Session{
			BaseURL:         GetString("session.base-url"),
			DashboardURL:    GetString("session.dashboard-url"),
			AuthTimeout:     GetDuration("session.auth-timeout"),
			Headless:        GetBool("session.headless"),
			InstallBrowsers: GetBool("session.install-browsers"),
			Settle:          GetDuration("session.settle"),
			ActionTimeout:   GetDuration("session.action-timeout"),
		},
		Attempt: Attempt{
			InputTimeout:   GetDuration("attempt.input-timeout"),
			ConfirmTimeout: GetDuration("attempt.confirm-timeout"),
			ClickTimeout:   GetDuration("attempt.click-timeout"),
			Settle:         GetDuration("attempt.settle"),
			SuccessTimeout: GetDuration("attempt.success-timeout"),
			PollInterval:   GetDuration("attempt.poll-interval"),
		},
		Diagnostics: Diagnostics{Dir: GetString("diagnostics.dir")},
		State:       State{Dir: GetString("state.dir")},
		Log: Log{
			Level:  strings.ToLower(GetString("log.level")),
			Format: strings.ToLower(GetString("log.format")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	for key, val := range map[string]string{
		"files.invitation": c.Files.Invitation,
		"files.used":       c.Files.Used,
		"files.error":      c.Files.Error,
		"state.dir":        c.State.Dir,
		"diagnostics.dir":  c.Diagnostics.Dir,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalid, key)
		}
	}

	for key, raw := range map[string]string{
		"session.base-url":      c.Session.BaseURL,
		"session.dashboard-url": c.Session.DashboardURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalid, key, raw)
		}
	}

	for key, d := range map[string]time.Duration{
		"delay.inter-attempt":     c.Delay.InterAttempt,
		"delay.grace":             c.Delay.Grace,
		"session.settle":          c.Session.Settle,
		"attempt.settle":          c.Attempt.Settle,
		"attempt.input-timeout":   c.Attempt.InputTimeout,
		"attempt.confirm-timeout": c.Attempt.ConfirmTimeout,
		"attempt.click-timeout":   c.Attempt.ClickTimeout,
		"attempt.success-timeout": c.Attempt.SuccessTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, key)
		}
	}
	for key, d := range map[string]time.Duration{
		"session.auth-timeout":   c.Session.AuthTimeout,
		"session.action-timeout": c.Session.ActionTimeout,
		"attempt.poll-interval":  c.Attempt.PollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q (want debug, info, warn or error)", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalid, c.Log.Format)
	}
	return nil
}
