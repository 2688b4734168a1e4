// Package controller talks to the small planning model that turns an inbound
// message into an executable plan. The controller endpoint speaks the OpenAI
// chat-completions protocol; its reply is expected to contain exactly one
// JSON plan document.
//
// The controller is best-effort: any failure — transport, bad status, garbage
// output, schema violation — falls back to the deterministic planner unless
// the configuration demands that errors surface.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/models"
	"github.com/shushunyam/eyeofterror/internal/observe"
	"github.com/shushunyam/eyeofterror/internal/plan"
	"github.com/shushunyam/eyeofterror/internal/planner"
)

const (
	// planTemperature keeps plan generation deterministic.
	planTemperature = 0.0

	// planMaxTokens caps the controller reply. Plans are small; anything
	// longer is the model rambling.
	planMaxTokens = 128
)

// sysDirective instructs the controller model to answer with a bare plan.
const sysDirective = "Ты — контроллер-оркестратор. Верни только один JSON-план по схеме Plan " +
	"(version, route_parts, steps[], criteria). Никаких пояснений."

// planHint is a one-shot template embedded in every user message.
const planHint = `{"version":"1.0","route_parts":{},"steps":[{"id":"s1","kind":"tool","call":{"tool":"tts.speak","args":{"text":"..."}},"wait_for":[],"emit":"speech"}],"criteria":{"success_when":["..."],"deliver":["speech"]}}`

// Client plans inbound messages via the controller model, falling back to the
// deterministic planner on any failure. Safe for concurrent use.
type Client struct {
	cfg      config.ControllerConfig
	client   oai.Client
	endpoint string
	metrics  *observe.Metrics

	mu      sync.Mutex
	lastErr string
}

// DebugState is the snapshot served on /debug/controller.
type DebugState struct {
	Base      string `json:"base"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	Disabled  bool   `json:"disabled"`
	LastError string `json:"last_error,omitempty"`
}

// New builds a controller client. httpClient carries the shared connection
// pool; its timeout policy applies to every planning call.
func New(cfg config.ControllerConfig, httpClient *http.Client, m *observe.Metrics) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: cfg.Base + "/v1/chat/completions",
		metrics:  m,
	}
	if !cfg.Disabled {
		// A failed planning call falls back immediately; retrying would only
		// delay the answer.
		c.client = oai.NewClient(
			option.WithBaseURL(cfg.Base+"/v1"),
			option.WithAPIKey("EMPTY"),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		)
	}
	return c
}

// Plan produces a validated plan for req. When the controller is disabled or
// fails, the deterministic planner takes over; with surface_errors set, the
// controller error is returned instead.
func (c *Client) Plan(ctx context.Context, req plan.Request) (*plan.Plan, error) {
	log := observe.Logger(ctx)

	if c.cfg.Disabled {
		c.metrics.RecordFallback(ctx, "disabled")
		return planner.Build(req), nil
	}

	p, err := c.ask(ctx, req)
	if err == nil {
		c.setLastErr("")
		return p, nil
	}

	c.setLastErr(err.Error())
	if c.cfg.SurfaceErrors {
		return nil, err
	}

	log.Warn("controller failed, using fallback planner",
		"endpoint", c.endpoint, "error", err)
	c.metrics.RecordFallback(ctx, string(fault.KindOf(err)))
	return planner.Build(req), nil
}

// ask performs a single planning round-trip.
func (c *Client) ask(ctx context.Context, req plan.Request) (*plan.Plan, error) {
	input, err := json.Marshal(req.AsContext())
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, err, "controller: encode input")
	}

	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.cfg.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(sysDirective),
			oai.UserMessage(fmt.Sprintf("Вход: %s. Верни только JSON. Шаблон: %s", input, planHint)),
		},
		Temperature: param.NewOpt(planTemperature),
		MaxTokens:   param.NewOpt(int64(planMaxTokens)),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, models.Classify(err, "controller: plan request")
	}
	if len(resp.Choices) == 0 {
		return nil, fault.New(fault.SchemaError, "controller: reply has no choices")
	}

	raw, err := extractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return plan.Decode([]byte(raw))
}

// Debug returns the current controller state for the debug endpoint.
func (c *Client) Debug() DebugState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DebugState{
		Base:      c.cfg.Base,
		Endpoint:  c.endpoint,
		Model:     c.cfg.Model,
		Disabled:  c.cfg.Disabled,
		LastError: c.lastErr,
	}
}

func (c *Client) setLastErr(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// extractJSON cuts the substring between the first '{' and the last '}',
// tolerating models that wrap the plan in prose or code fences.
func extractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return "", fault.New(fault.SchemaError, "controller: no JSON object in reply")
	}
	return text[start : end+1], nil
}
