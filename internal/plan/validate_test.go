package plan

import (
	"strings"
	"testing"

	"github.com/shushunyam/eyeofterror/internal/fault"
)

// validPlan returns a minimal plan that passes validation.
func validPlan() *Plan {
	return &Plan{
		Version: Version,
		Steps: []Step{
			{
				ID:   "tts1",
				Kind: KindTool,
				Call: &ToolCall{Tool: ToolSpeak, Args: map[string]any{"text": "привет"}},
				Emit: "speech",
			},
		},
		Criteria: Criteria{Deliver: []string{"speech"}},
	}
}

func TestValidate_AcceptsMinimalPlan(t *testing.T) {
	t.Parallel()
	if err := Validate(validPlan()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

// An unresolvable wait_for is an execution concern, not a schema one; the
// validator lets it through and the executor reports DependencyMissing.
func TestValidate_AcceptsUnknownWaitForReference(t *testing.T) {
	t.Parallel()

	p := validPlan()
	p.Steps[0].WaitFor = []string{"ghost"}
	if err := Validate(p); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantMsg string
	}{
		{
			name:    "wrong version",
			mutate:  func(p *Plan) { p.Version = "2.0" },
			wantMsg: "version",
		},
		{
			name:    "no steps",
			mutate:  func(p *Plan) { p.Steps = nil },
			wantMsg: "steps: must not be empty",
		},
		{
			name:    "empty id",
			mutate:  func(p *Plan) { p.Steps[0].ID = "" },
			wantMsg: "id: must not be empty",
		},
		{
			name: "duplicate id",
			mutate: func(p *Plan) {
				p.Steps = append(p.Steps, Step{
					ID:   "tts1",
					Kind: KindTool,
					Call: &ToolCall{Tool: ToolDisplay},
				})
			},
			wantMsg: "duplicates",
		},
		{
			name:    "bad kind",
			mutate:  func(p *Plan) { p.Steps[0].Kind = "oracle" },
			wantMsg: "not tool or model",
		},
		{
			name: "tool step with route",
			mutate: func(p *Plan) {
				p.Steps[0].Route = &TargetModel{Name: Model20B, Purpose: PurposeChat}
			},
			wantMsg: "route: must be absent",
		},
		{
			name:    "tool step without call",
			mutate:  func(p *Plan) { p.Steps[0].Call = nil },
			wantMsg: "call: required",
		},
		{
			name:    "unknown tool",
			mutate:  func(p *Plan) { p.Steps[0].Call.Tool = "fs.delete" },
			wantMsg: "unknown tool",
		},
		{
			name: "model step with call",
			mutate: func(p *Plan) {
				p.Steps[0].Kind = KindModel
				p.Steps[0].Route = &TargetModel{Name: Model20B, Purpose: PurposeChat}
			},
			wantMsg: "call: must be absent",
		},
		{
			name: "model step without route",
			mutate: func(p *Plan) {
				p.Steps[0].Kind = KindModel
				p.Steps[0].Call = nil
			},
			wantMsg: "route: required",
		},
		{
			name: "unknown model name",
			mutate: func(p *Plan) {
				p.Steps[0].Kind = KindModel
				p.Steps[0].Call = nil
				p.Steps[0].Route = &TargetModel{Name: "120b", Purpose: PurposeChat}
			},
			wantMsg: "unknown model",
		},
		{
			name: "unknown purpose",
			mutate: func(p *Plan) {
				p.Steps[0].Kind = KindModel
				p.Steps[0].Call = nil
				p.Steps[0].Route = &TargetModel{Name: Model20B, Purpose: "prophecy"}
			},
			wantMsg: "unknown purpose",
		},
		{
			name:    "self dependency",
			mutate:  func(p *Plan) { p.Steps[0].WaitFor = []string{"tts1"} },
			wantMsg: "depends on itself",
		},
		{
			name: "dependency cycle",
			mutate: func(p *Plan) {
				p.Steps[0].WaitFor = []string{"tts2"}
				p.Steps = append(p.Steps, Step{
					ID:      "tts2",
					Kind:    KindTool,
					Call:    &ToolCall{Tool: ToolDisplay},
					WaitFor: []string{"tts1"},
				})
			},
			wantMsg: "dependency cycle",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := validPlan()
			tc.mutate(p)

			err := Validate(p)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if fault.KindOf(err) != fault.SchemaError {
				t.Errorf("kind = %q, want %q", fault.KindOf(err), fault.SchemaError)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tc.wantMsg)
			}
		})
	}
}

func TestDecode_ValidDocument(t *testing.T) {
	t.Parallel()

	raw := `{
		"version": "1.0",
		"route_parts": {"voice": "warpwails"},
		"steps": [
			{"id": "llm1", "kind": "model", "route": {"name": "20b", "purpose": "chat"}, "emit": "reply"},
			{"id": "tts1", "kind": "tool", "call": {"tool": "tts.speak", "args": {"text": "${reply.text}"}}, "wait_for": ["llm1"], "emit": "speech"}
		],
		"criteria": {"success_when": ["reply.text != ''"], "deliver": ["reply", "speech"]}
	}`

	p, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(p.Steps))
	}
	if p.Steps[0].Route.Name != Model20B {
		t.Errorf("route name = %q, want %q", p.Steps[0].Route.Name, Model20B)
	}
	if p.RouteParts["voice"] != "warpwails" {
		t.Errorf("route_parts = %v", p.RouteParts)
	}
	if got := p.Criteria.Deliver; len(got) != 2 || got[0] != "reply" {
		t.Errorf("deliver = %v", got)
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	raw := `{"version":"1.0","steps":[{"id":"s1","kind":"tool","call":{"tool":"render.display"},"retries":3}],"criteria":{}}`
	if _, err := Decode([]byte(raw)); fault.KindOf(err) != fault.SchemaError {
		t.Fatalf("Decode() error = %v, want schema_error", err)
	}
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{"version":`)); fault.KindOf(err) != fault.SchemaError {
		t.Fatalf("Decode() error = %v, want schema_error", err)
	}
}

func TestRequest_HasInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{"empty", Request{}, false},
		{"text only", Request{Text: "привет"}, true},
		{"audio only", Request{AudioB64: "UklGRg=="}, true},
		{"meta only", Request{Meta: map[string]any{"chat": "tg"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.req.HasInput(); got != tc.want {
				t.Errorf("HasInput() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRequest_AsContext(t *testing.T) {
	t.Parallel()

	m := Request{Text: "готово", Phase: "postprocess"}.AsContext()
	if m["text"] != "готово" {
		t.Errorf("text = %v", m["text"])
	}
	if m["phase"] != "postprocess" {
		t.Errorf("phase = %v", m["phase"])
	}
	if _, ok := m["audio_b64"]; ok {
		t.Error("audio_b64 should be absent when empty")
	}

	// text is always present, even empty: model steps read input.text.
	m = Request{AudioB64: "UklGRg=="}.AsContext()
	if _, ok := m["text"]; !ok {
		t.Error("text key should always be present")
	}
}
