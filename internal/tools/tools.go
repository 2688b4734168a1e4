// Package tools implements the closed registry of asynchronous operations a
// plan step may invoke. Each handler receives a pre-interpolated argument map
// and returns a JSON-shaped result that the executor binds into the execution
// context. Handlers never panic and never return untyped errors: argument
// problems are fault.ToolError, downstream problems keep the classification
// assigned by the HTTP layer.
package tools

import (
	"context"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/httpx"
	"github.com/shushunyam/eyeofterror/internal/plan"
)

// Handler executes one tool invocation.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registry maps tool names to handlers. The mapping is fixed at construction
// time and safe for concurrent use.
type Registry struct {
	handlers map[plan.ToolName]Handler
}

// New builds the registry over the configured remote backends. The tool set
// is closed: it always contains exactly tts.speak, stt.transcribe, and
// render.display.
func New(cfg config.ToolsConfig, pool *httpx.Pool) *Registry {
	return &Registry{
		handlers: map[plan.ToolName]Handler{
			plan.ToolSpeak:      speakHandler(cfg, pool),
			plan.ToolTranscribe: transcribeHandler(cfg, pool),
			plan.ToolDisplay:    displayHandler(),
		},
	}
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name plan.ToolName) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// stringArg extracts a non-empty string argument, reporting whether it was
// present. Non-string values and empty strings count as absent — an
// interpolation miss degrades a reference to "".
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
