// Package orchestrator implements the two-phase /route flow: plan the inbound
// message, execute, and — when the execution produced model text — re-plan a
// postprocess phase over that text before assembling the artifact bundle.
package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shushunyam/eyeofterror/internal/executor"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/observe"
	"github.com/shushunyam/eyeofterror/internal/plan"
)

// phasePostprocess marks the second planning round.
const phasePostprocess = "postprocess"

// Planner produces a validated plan for a request.
type Planner interface {
	Plan(ctx context.Context, req plan.Request) (*plan.Plan, error)
}

// Runner executes a plan against an execution context.
type Runner interface {
	Run(ctx context.Context, p *plan.Plan, execCtx map[string]any) (*executor.Result, error)
}

// Orchestrator drives the plan/execute/re-plan cycle.
type Orchestrator struct {
	planner Planner
	exec    Runner
}

// New builds an Orchestrator.
func New(p Planner, r Runner) *Orchestrator {
	return &Orchestrator{planner: p, exec: r}
}

// Outcome is the result of one /route invocation. Logs accumulate the step
// traces of both phases and are populated even when Route returns an error.
type Outcome struct {
	Artifacts map[string]any
	Logs      []string
}

// Route processes one inbound message end to end. The returned Outcome is
// never nil; on error its Logs still cover the steps that completed.
func (o *Orchestrator) Route(ctx context.Context, req plan.Request) (*Outcome, error) {
	out := &Outcome{}

	if !req.HasInput() {
		return out, fault.New(fault.InvalidInput, "message carries neither text nor audio")
	}

	ctx, span := observe.StartSpan(ctx, "orchestrator.route")
	defer span.End()

	// Phase A: plan and execute the inbound message.
	planIn, err := o.plan(ctx, req, "inbound")
	if err != nil {
		return out, err
	}
	execCtx := map[string]any{"input": req.AsContext()}
	res, err := o.exec.Run(ctx, planIn, execCtx)
	out.Logs = res.Trace
	if err != nil {
		return out, err
	}

	// Phase B: a model emitted text — hand it back for postprocess planning.
	planOut := planIn
	if textOut, ok := producedText(execCtx); ok {
		planOut, err = o.plan(ctx, plan.Request{Text: textOut, Phase: phasePostprocess}, phasePostprocess)
		if err != nil {
			return out, err
		}
		// The execution context survives into phase B so earlier emits stay
		// addressable, but the input is replaced with the produced text.
		execCtx["input"] = map[string]any{"text": textOut}
		res, err = o.exec.Run(ctx, planOut, execCtx)
		out.Logs = append(out.Logs, res.Trace...)
		if err != nil {
			return out, err
		}
	}

	// Deliver from the most recent plan. Names that nothing emitted come
	// through as explicit nulls so the caller sees what was promised.
	out.Artifacts = make(map[string]any, len(planOut.Criteria.Deliver))
	for _, name := range planOut.Criteria.Deliver {
		out.Artifacts[name] = execCtx[name]
	}
	return out, nil
}

func (o *Orchestrator) plan(ctx context.Context, req plan.Request, phase string) (*plan.Plan, error) {
	ctx, span := observe.StartSpan(ctx, "orchestrator.plan",
		trace.WithAttributes(attribute.String("phase", phase)))
	defer span.End()
	return o.planner.Plan(ctx, req)
}

// producedText extracts the model text that triggers phase B: reply.text
// first, then full_text.text.
func producedText(execCtx map[string]any) (string, bool) {
	_, hasReply := execCtx["reply"]
	_, hasFull := execCtx["full_text"]
	if !hasReply && !hasFull {
		return "", false
	}
	for _, key := range []string{"reply", "full_text"} {
		if m, ok := execCtx[key].(map[string]any); ok {
			if text, ok := m["text"].(string); ok && text != "" {
				return text, true
			}
		}
	}
	// The emit exists but carries no text; phase B still runs on empty input,
	// matching the lenient behaviour of the planning prompt.
	return "", true
}
