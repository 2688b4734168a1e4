// Package config provides the configuration schema and loader for the
// EyeOfTerror orchestrator. Settings come from an optional YAML file overlaid
// with the environment variables the deployment scripts export; environment
// always wins so a file-less, env-only deployment works.
package config

import (
	"strconv"

	"github.com/shushunyam/eyeofterror/internal/plan"
)

// LogLevel controls log verbosity for the orchestrator.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Controller ControllerConfig      `yaml:"controller"`
	Routes     map[string]RouteEntry `yaml:"routes"`
	Tools      ToolsConfig           `yaml:"tools"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// Host is the bind address (env EYE_HOST, default "0.0.0.0").
	Host string `yaml:"host"`

	// Port is the listen port (env EYE_PORT, default 1488).
	Port int `yaml:"port"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ListenAddr returns the host:port pair the server binds to.
func (s ServerConfig) ListenAddr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// ControllerConfig configures the plan-emitting controller model.
type ControllerConfig struct {
	// Base is the controller endpoint base URL (env MODEL_7B_BASE).
	Base string `yaml:"base"`

	// Model is the controller model identifier (env VLLM_MODEL).
	Model string `yaml:"model"`

	// Disabled forces every planning phase onto the deterministic fallback
	// planner without contacting the controller.
	Disabled bool `yaml:"disabled"`

	// SurfaceErrors turns controller failures into request failures instead
	// of silently falling back.
	SurfaceErrors bool `yaml:"surface_errors"`
}

// RouteEntry maps a plan route name (e.g. "20b") to a worker endpoint.
type RouteEntry struct {
	// Base is the worker endpoint base URL (env MODEL_7B_BASE / MODEL_20B_BASE
	// for their respective routes).
	Base string `yaml:"base"`

	// Model is the model identifier sent in chat-completion requests.
	Model string `yaml:"model"`
}

// ToolsConfig holds the remote backends the tool registry forwards to.
type ToolsConfig struct {
	// WarpWailsURL is the audio-pipeline base URL for tts.speak
	// (env WARPWAILS_URL).
	WarpWailsURL string `yaml:"warpwails_url"`

	// STTBase is the transcription service base URL for stt.transcribe
	// (env STT_BASE).
	STTBase string `yaml:"stt_base"`

	// DefaultSpeaker is the voice used when a tts.speak call names none
	// (env TTS_DEFAULT_SPK).
	DefaultSpeaker string `yaml:"default_speaker"`
}

// Route returns the entry configured for name, if any.
func (c *Config) Route(name plan.ModelName) (RouteEntry, bool) {
	e, ok := c.Routes[string(name)]
	return e, ok
}
