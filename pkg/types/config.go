package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that talk to
// the report service.
type HTTPConfig struct {
	// BaseURL is the report service root (e.g. "http://localhost:8000").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Timeout bounds connection setup and, for the non-streaming fallback,
	// the whole request. Streams themselves are bounded by IdleTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "plutus/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Token is an optional bearer token for the report service.
	Token string `json:"-" yaml:"-"`
}

// Mode selects how a submission is delivered.
type Mode string

const (
	// ModeStream opens a push connection and reports stage progress.
	ModeStream Mode = "stream"

	// ModeSync makes a single request/response call with no progress.
	ModeSync Mode = "sync"
)

// StreamConfig holds settings for tracking a submission.
type StreamConfig struct {
	HTTPConfig `yaml:",inline"`

	// Mode is stream (default) or sync.
	Mode Mode `json:"mode" yaml:"mode"`

	// MaxResults is the default number of funded papers to request (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// IdleTimeout fails an active stream that delivers no frame for this
	// long (default 2m). Zero disables the check.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// MaxFrameBytes caps the size of one inbound frame (default 8 MiB).
	MaxFrameBytes int `json:"max_frame_bytes" yaml:"max_frame_bytes"`
}

// ArchiveConfig holds settings for the local report archive.
type ArchiveConfig struct {
	// Dir is the directory holding reports.db and exports (default "reports").
	Dir string `json:"dir" yaml:"dir"`

	// Disabled turns off archiving of delivered reports.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a logrus level name (default "info").
	Level string `json:"level" yaml:"level"`

	// File, when set, receives a copy of every log line.
	File string `json:"file" yaml:"file"`
}

// ClientConfig groups all client settings.
type ClientConfig struct {
	Stream  StreamConfig  `json:"stream" yaml:"stream"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Log     LogConfig     `json:"log" yaml:"log"`
}
