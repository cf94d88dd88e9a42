package config

const (
	defaultAPITarget = "http://localhost:8000"

	defaultMaxAttempts        = 3
	defaultBaseDelayMs        = 1000
	defaultAttemptTimeoutSecs = 60

	defaultMode = "direct"

	defaultEventStreamTopic = "atlas.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultAPITarget,
		},
		Stream: StreamConfig{
			MaxAttempts:        defaultMaxAttempts,
			BaseDelayMs:        defaultBaseDelayMs,
			AttemptTimeoutSecs: defaultAttemptTimeoutSecs,
		},
		Chat: ChatConfig{
			Mode: defaultMode,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventStreamTopic,
		},
	}
}
