// Package config layers redeem's settings: built-in defaults, an optional
// redeem.yaml, a .env file, REDEEM_* environment variables and command-line
// flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v          *viper.Viper
	configPath string
)

// EnvPrefix is prepended to every environment override (files.used -> REDEEM_FILES_USED).
const EnvPrefix = "REDEEM"

// SetConfigPath forces a config file instead of the search path. Call it
// before Initialize.
func SetConfigPath(path string) {
	configPath = path
}

// Initialize sets up the viper configuration singleton.
func Initialize() error {
	v = viper.New()

	setDefaults(v)

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("redeem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "redeem"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("files.invitation", "invitation_code.txt")
	v.SetDefault("files.used", "used_code.txt")
	v.SetDefault("files.error", "error_code.txt")

	v.SetDefault("delay.inter-attempt", 2*time.Second)
	v.SetDefault("delay.grace", 10*time.Second)

	v.SetDefault("session.base-url", "https://duoink.co/")
	v.SetDefault("session.dashboard-url", "https://duoink.co/pte/")
	v.SetDefault("session.auth-timeout", 60*time.Second)
	v.SetDefault("session.headless", false)
	v.SetDefault("session.install-browsers", true)
	v.SetDefault("session.settle", 1*time.Second)
	v.SetDefault("session.action-timeout", 10*time.Second)

	v.SetDefault("attempt.input-timeout", 5*time.Second)
	v.SetDefault("attempt.confirm-timeout", 5*time.Second)
	v.SetDefault("attempt.click-timeout", 3*time.Second)
	v.SetDefault("attempt.settle", 2*time.Second)
	v.SetDefault("attempt.success-timeout", 3*time.Second)
	v.SetDefault("attempt.poll-interval", 250*time.Millisecond)

	v.SetDefault("diagnostics.dir", "screenshots")
	v.SetDefault("state.dir", ".redeem")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindPFlag binds a config key to a command-line flag. A flag only wins
// when it was set explicitly.
func BindPFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	return v.BindPFlag(key, flag)
}

// ConfigFileUsed returns the config file that was read, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}
