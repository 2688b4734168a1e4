// Package models routes plan model steps to concrete worker endpoints. Every
// worker speaks the OpenAI chat-completions protocol at {base}/v1; the route
// table is fixed at startup from configuration.
package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/plan"
)

const (
	// workerTemperature keeps worker output close to deterministic.
	workerTemperature = 0.2

	// workerMaxTokens caps a single worker reply.
	workerMaxTokens = 512

	// placeholderAPIKey satisfies clients of local vLLM/llama.cpp endpoints,
	// which accept any bearer token.
	placeholderAPIKey = "EMPTY"
)

// directives maps each purpose to the system message injected ahead of the
// user text.
var directives = map[plan.Purpose]string{
	plan.PurposeChat:      "Отвечай кратко и по делу. Русский.",
	plan.PurposeCode:      "Пиши только код. Пояснения — одной строкой.",
	plan.PurposeReason:    "Рассуждай пошагово, в конце дай короткий вывод. Русский.",
	plan.PurposeSummarize: "Сожми текст в несколько предложений, сохранив факты. Русский.",
	plan.PurposePlan:      "Разбей задачу на короткие нумерованные шаги. Русский.",
	plan.PurposeMain:      "Ты основной ассистент. Отвечай кратко и по делу. Русский.",
}

// route pairs a ready client with the model id it serves.
type route struct {
	client oai.Client
	model  string
}

// Router resolves plan route descriptors to worker endpoints. Immutable after
// construction; safe for concurrent use.
type Router struct {
	routes map[plan.ModelName]route
}

// New builds a Router from the configured route table. Every entry gets its
// own chat-completions client sharing httpClient's connection pool.
func New(cfg *config.Config, httpClient *http.Client) *Router {
	r := &Router{routes: make(map[plan.ModelName]route, len(cfg.Routes))}
	for name, entry := range cfg.Routes {
		r.routes[plan.ModelName(name)] = route{
			// Workers are local single-hop endpoints; retrying only hides
			// capacity problems, so failures surface immediately.
			client: oai.NewClient(
				option.WithBaseURL(entry.Base+"/v1"),
				option.WithAPIKey(placeholderAPIKey),
				option.WithHTTPClient(httpClient),
				option.WithMaxRetries(0),
			),
			model: entry.Model,
		}
	}
	return r
}

// ChatComplete sends userText to the worker behind name with the system
// directive derived from purpose, and returns {"text": <content>}.
// Unconfigured routes fail with fault.UnknownRoute.
func (r *Router) ChatComplete(ctx context.Context, name plan.ModelName, purpose plan.Purpose, userText string) (map[string]any, error) {
	rt, ok := r.routes[name]
	if !ok {
		return nil, fault.New(fault.UnknownRoute, "no endpoint configured for route %q", name)
	}
	directive, ok := directives[purpose]
	if !ok {
		directive = directives[plan.PurposeChat]
	}

	resp, err := rt.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(rt.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(directive),
			oai.UserMessage(userText),
		},
		Temperature: param.NewOpt(workerTemperature),
		MaxTokens:   param.NewOpt(int64(workerMaxTokens)),
	})
	if err != nil {
		return nil, Classify(err, fmt.Sprintf("models: route %s/%s", name, purpose))
	}
	if len(resp.Choices) == 0 {
		return nil, fault.New(fault.HTTPStatus, "models: route %s returned empty choices", name)
	}
	return map[string]any{"text": resp.Choices[0].Message.Content}, nil
}

// Classify maps a chat-completions client error to the orchestrator
// taxonomy. Non-2xx answers keep their downstream status code.
func Classify(err error, msg string) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &fault.Error{
			Kind:    fault.HTTPStatus,
			Message: fmt.Sprintf("%s: status %d", msg, apiErr.StatusCode),
			Code:    apiErr.StatusCode,
			Err:     err,
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return fault.Wrap(fault.Canceled, err, "%s", msg)
	case errors.Is(err, context.DeadlineExceeded):
		return fault.Wrap(fault.Timeout, err, "%s", msg)
	}
	var timeouter interface{ Timeout() bool }
	if errors.As(err, &timeouter) && timeouter.Timeout() {
		return fault.Wrap(fault.Timeout, err, "%s", msg)
	}
	return fault.Wrap(fault.Transport, err, "%s", msg)
}
