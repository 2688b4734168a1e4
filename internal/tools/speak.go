package tools

import (
	"context"
	"encoding/base64"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/httpx"
)

// speakEndpoint is the WarpWails synthesis route. It answers with a complete
// audio/wav body once the whole pipeline (emotion → TTS → FX) has run.
const speakEndpoint = "/speak_full"

// passthroughArgs are optional tts.speak arguments forwarded to WarpWails
// unchanged when present.
var passthroughArgs = []string{"preset", "emotion", "intensity"}

// speakHandler returns the tts.speak handler. Synthesis has no deadline of
// its own — long utterances legitimately take minutes — so the long client is
// used and cancellation comes from the request context. The WAV stream is
// drained in full before the handler returns.
func speakHandler(cfg config.ToolsConfig, pool *httpx.Pool) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		text, ok := stringArg(args, "text")
		if !ok {
			return nil, fault.New(fault.ToolError, "tts.speak: missing 'text'")
		}
		speaker, ok := stringArg(args, "speaker")
		if !ok {
			speaker = cfg.DefaultSpeaker
		}

		payload := map[string]any{"text": text, "speaker": speaker}
		for _, key := range passthroughArgs {
			if v, present := args[key]; present {
				payload[key] = v
			}
		}

		wav, err := httpx.PostJSON(ctx, pool.Long, cfg.WarpWailsURL+speakEndpoint, payload)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"type":     "audio/wav",
			"speaker":  speaker,
			"data_b64": base64.StdEncoding.EncodeToString(wav),
		}, nil
	}
}
