package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent atlas configuration stored as config.toml
// in the .atlas/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Stream      StreamConfig      `toml:"stream"`
	Chat        ChatConfig        `toml:"chat"`
	EventStream EventStreamConfig `toml:"event_stream"`
}

// ClientConfig holds settings for commands that connect to the backend
// (e.g. atlas chat, atlas sessions, atlas cities).
// APITarget is a full URL (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// StreamConfig holds reconnection and timeout settings for the
// streaming chat connection.
type StreamConfig struct {
	MaxAttempts        uint `toml:"max_attempts,omitempty"`
	BaseDelayMs        uint `toml:"base_delay_ms,omitempty"`
	AttemptTimeoutSecs uint `toml:"attempt_timeout_secs,omitempty"`
}

// ChatConfig holds conversation defaults.
type ChatConfig struct {
	Model string `toml:"model,omitempty"`
	Mode  string `toml:"mode,omitempty"`
}

// EventStreamConfig holds settings for publishing finished turns to Kafka.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"stream.max_attempts": {
		get: func(c *Config) string { return formatUint(c.Stream.MaxAttempts) },
		set: func(c *Config, v string) error {
			n, err := parseUint("stream.max_attempts", v)
			if err != nil {
				return err
			}
			c.Stream.MaxAttempts = n
			return nil
		},
	},
	"stream.base_delay_ms": {
		get: func(c *Config) string { return formatUint(c.Stream.BaseDelayMs) },
		set: func(c *Config, v string) error {
			n, err := parseUint("stream.base_delay_ms", v)
			if err != nil {
				return err
			}
			c.Stream.BaseDelayMs = n
			return nil
		},
	},
	"stream.attempt_timeout_secs": {
		get: func(c *Config) string { return formatUint(c.Stream.AttemptTimeoutSecs) },
		set: func(c *Config, v string) error {
			n, err := parseUint("stream.attempt_timeout_secs", v)
			if err != nil {
				return err
			}
			c.Stream.AttemptTimeoutSecs = n
			return nil
		},
	},
	"chat.model": {
		get: func(c *Config) string { return c.Chat.Model },
		set: func(c *Config, v string) error { c.Chat.Model = v; return nil },
	},
	"chat.mode": {
		get: func(c *Config) string { return c.Chat.Mode },
		set: func(c *Config, v string) error { c.Chat.Mode = v; return nil },
	},
	"event_stream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for event_stream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}
