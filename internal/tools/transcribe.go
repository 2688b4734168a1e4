package tools

import (
	"context"
	"encoding/json"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/httpx"
)

// transcribeEndpoint is the speech-to-text route on the STT service.
const transcribeEndpoint = "/transcribe"

// transcribeResponse is the JSON body returned by the STT service.
type transcribeResponse struct {
	Text string `json:"text"`
}

// transcribeHandler returns the stt.transcribe handler. Transcription is a
// bounded call and uses the short client.
func transcribeHandler(cfg config.ToolsConfig, pool *httpx.Pool) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		audio, ok := stringArg(args, "audio_b64")
		if !ok {
			return nil, fault.New(fault.ToolError, "stt.transcribe: missing 'audio_b64'")
		}

		body, err := httpx.PostJSON(ctx, pool.Short, cfg.STTBase+transcribeEndpoint, map[string]any{
			"audio_b64": audio,
		})
		if err != nil {
			return nil, err
		}

		var resp transcribeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fault.Wrap(fault.ToolError, err, "stt.transcribe: decode response")
		}
		return map[string]any{"text": resp.Text}, nil
	}
}
