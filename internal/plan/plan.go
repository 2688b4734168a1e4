// Package plan defines the typed execution-plan schema emitted by the
// controller model, together with a strict decoder and validator. A plan that
// passes [Validate] is structurally sound: step ids are unique, every
// wait_for reference resolves, the dependency graph is acyclic, and every
// enumeration value belongs to its closed set.
package plan

import (
	"bytes"
	"encoding/json"

	"github.com/shushunyam/eyeofterror/internal/fault"
)

// Version is the only accepted plan schema version.
const Version = "1.0"

// StepKind discriminates tool steps from model steps.
type StepKind string

const (
	KindTool  StepKind = "tool"
	KindModel StepKind = "model"
)

// IsValid reports whether k is a recognised step kind.
func (k StepKind) IsValid() bool {
	return k == KindTool || k == KindModel
}

// ModelName is a worker-model route identifier.
type ModelName string

const (
	Model7B  ModelName = "7b"
	Model20B ModelName = "20b"
	Model70B ModelName = "70b"
)

// IsValid reports whether n is a recognised route name.
func (n ModelName) IsValid() bool {
	switch n {
	case Model7B, Model20B, Model70B:
		return true
	}
	return false
}

// Purpose selects the system directive injected ahead of a model call.
type Purpose string

const (
	PurposeChat      Purpose = "chat"
	PurposeCode      Purpose = "code"
	PurposeReason    Purpose = "reason"
	PurposeSummarize Purpose = "summarize"
	PurposePlan      Purpose = "plan"
	PurposeMain      Purpose = "main"
)

// IsValid reports whether p is a recognised purpose.
func (p Purpose) IsValid() bool {
	switch p {
	case PurposeChat, PurposeCode, PurposeReason, PurposeSummarize, PurposePlan, PurposeMain:
		return true
	}
	return false
}

// ToolName identifies a tool in the closed registry.
type ToolName string

const (
	ToolSpeak      ToolName = "tts.speak"
	ToolTranscribe ToolName = "stt.transcribe"
	ToolDisplay    ToolName = "render.display"
)

// IsValid reports whether t is a recognised tool name.
func (t ToolName) IsValid() bool {
	switch t {
	case ToolSpeak, ToolTranscribe, ToolDisplay:
		return true
	}
	return false
}

// TargetModel routes a model step to a worker endpoint with a purpose.
type TargetModel struct {
	Name    ModelName `json:"name"`
	Purpose Purpose   `json:"purpose"`
}

// ToolCall names a registry tool and its argument map. Argument string values
// may contain `${path}` references resolved against the execution context.
type ToolCall struct {
	Tool ToolName       `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Step is a single node of the plan DAG. Exactly one of Call (kind "tool") or
// Route (kind "model") is set; [Validate] enforces the exclusivity.
type Step struct {
	ID      string       `json:"id"`
	Kind    StepKind     `json:"kind"`
	Route   *TargetModel `json:"route,omitempty"`
	Call    *ToolCall    `json:"call,omitempty"`
	WaitFor []string     `json:"wait_for,omitempty"`
	Emit    string       `json:"emit,omitempty"`
}

// Criteria carries the delivery list and the advisory success conditions.
// SuccessWhen is parsed and preserved but not evaluated by the executor.
type Criteria struct {
	SuccessWhen []string `json:"success_when,omitempty"`
	Deliver     []string `json:"deliver,omitempty"`
}

// Plan is a validated DAG of steps plus a delivery criterion. RouteParts is
// reserved for forward compatibility and carries no semantics.
type Plan struct {
	Version    string            `json:"version"`
	RouteParts map[string]string `json:"route_parts,omitempty"`
	Steps      []Step            `json:"steps"`
	Criteria   Criteria          `json:"criteria"`
}

// Decode strictly parses raw JSON into a validated [*Plan]. Unknown fields at
// any level are rejected. The returned error is always a fault.SchemaError.
func Decode(raw []byte) (*Plan, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fault.Wrap(fault.SchemaError, err, "decode plan")
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
