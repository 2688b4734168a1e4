// Package planner builds deterministic execution plans without consulting the
// controller model. It is the degraded-mode path used when the controller is
// disabled, unreachable, or returns output that fails schema validation.
package planner

import (
	"strings"

	"github.com/shushunyam/eyeofterror/internal/plan"
)

// speakPrefixes mark a direct speech command; the remainder of the message is
// synthesised verbatim. Matched case-insensitively after trimming.
var speakPrefixes = []string{"скажи:", "say:"}

// ackText is spoken back after a successful transcription.
const ackText = "Принято. Распознал."

// Build constructs a plan for req. Three shapes exist:
//
//   - audio input: transcribe, then speak a fixed acknowledgement;
//   - a "скажи:"/"say:" command: speak the remainder;
//   - anything else: ask the 20b chat model, then speak its reply.
//
// Every returned plan passes [plan.Validate] by construction.
func Build(req plan.Request) *plan.Plan {
	if req.AudioB64 != "" {
		return &plan.Plan{
			Version: plan.Version,
			Steps: []plan.Step{
				{
					ID:   "stt1",
					Kind: plan.KindTool,
					Call: &plan.ToolCall{
						Tool: plan.ToolTranscribe,
						Args: map[string]any{"audio_b64": req.AudioB64},
					},
					Emit: "transcript",
				},
				{
					ID:   "tts1",
					Kind: plan.KindTool,
					Call: &plan.ToolCall{
						Tool: plan.ToolSpeak,
						Args: map[string]any{"text": ackText},
					},
					WaitFor: []string{"stt1"},
					Emit:    "ack_audio",
				},
			},
			Criteria: plan.Criteria{
				SuccessWhen: []string{"transcript.text != ''"},
				Deliver:     []string{"ack_audio", "transcript"},
			},
		}
	}

	if said, ok := speechCommand(req.Text); ok {
		return &plan.Plan{
			Version: plan.Version,
			Steps: []plan.Step{
				{
					ID:   "tts1",
					Kind: plan.KindTool,
					Call: &plan.ToolCall{
						Tool: plan.ToolSpeak,
						Args: map[string]any{"text": said, "preset": "imp_light"},
					},
					Emit: "speech",
				},
			},
			Criteria: plan.Criteria{
				SuccessWhen: []string{"len(speech.data_b64) > 0"},
				Deliver:     []string{"speech"},
			},
		}
	}

	return &plan.Plan{
		Version: plan.Version,
		Steps: []plan.Step{
			{
				ID:    "llm1",
				Kind:  plan.KindModel,
				Route: &plan.TargetModel{Name: plan.Model20B, Purpose: plan.PurposeChat},
				Emit:  "reply",
			},
			{
				ID:   "tts1",
				Kind: plan.KindTool,
				Call: &plan.ToolCall{
					Tool: plan.ToolSpeak,
					Args: map[string]any{"text": "${reply.text}"},
				},
				WaitFor: []string{"llm1"},
				Emit:    "speech",
			},
		},
		Criteria: plan.Criteria{
			SuccessWhen: []string{"reply.text != ''"},
			Deliver:     []string{"reply", "speech"},
		},
	}
}

// speechCommand reports whether text is a direct speech command and returns
// the part to synthesise. Prefix matching is case-insensitive and tolerant of
// leading whitespace.
func speechCommand(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, prefix := range speakPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):]), true
		}
	}
	return "", false
}
