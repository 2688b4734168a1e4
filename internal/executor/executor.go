// Package executor runs validated plans against the tool registry and the
// model router. Steps whose dependencies are satisfied execute concurrently
// in waves; emitted results are bound to the execution context between waves
// in declaration order, so interpolation inside a wave always sees a stable
// snapshot.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/observe"
	"github.com/shushunyam/eyeofterror/internal/plan"
	"github.com/shushunyam/eyeofterror/internal/tools"
)

// ToolRegistry resolves tool names to handlers.
type ToolRegistry interface {
	Lookup(name plan.ToolName) (tools.Handler, bool)
}

// ModelRouter dispatches a model step to a worker endpoint.
type ModelRouter interface {
	ChatComplete(ctx context.Context, name plan.ModelName, purpose plan.Purpose, userText string) (map[string]any, error)
}

// Executor runs plans. Immutable after construction; safe for concurrent use.
type Executor struct {
	tools   ToolRegistry
	models  ModelRouter
	metrics *observe.Metrics
}

// New builds an Executor over the given registry and router.
func New(t ToolRegistry, m ModelRouter, met *observe.Metrics) *Executor {
	return &Executor{tools: t, models: m, metrics: met}
}

// Result is the outcome of one plan execution. Context holds every emitted
// value keyed by emit name (plus whatever the caller seeded); Trace lists
// completed steps in plan declaration order. On error the Trace still covers
// the steps that finished before the failure.
type Result struct {
	Context map[string]any
	Trace   []string
}

// Run executes p against execCtx. The caller seeds execCtx — at minimum
// {"input": …} — and may pass the context of a previous execution to chain
// phases. execCtx is mutated in place as emits are bound.
//
// An emit name may be written at most once per Run; a second write fails the
// execution with fault.EmitConflict even if the name was seeded by a previous
// phase.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, execCtx map[string]any) (*Result, error) {
	done := make(map[string]bool, len(p.Steps))
	emitted := make(map[string]string, len(p.Steps))
	outputs := make([]map[string]any, len(p.Steps))

	for len(done) < len(p.Steps) {
		if err := ctx.Err(); err != nil {
			return e.result(p, done, execCtx), fault.Wrap(fault.Canceled, err, "execution interrupted")
		}

		ready := readySteps(p, done)
		if len(ready) == 0 {
			// Cycles are rejected at validation, so a stall can only mean a
			// wait_for reference no step in the plan will ever satisfy.
			stepID, dep := firstBlocked(p, done)
			return e.result(p, done, execCtx), fault.New(fault.DependencyMissing,
				"step %q: dependency %q will never be satisfied", stepID, dep)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range ready {
			step := &p.Steps[idx]
			g.Go(func() error {
				out, err := e.runStep(gctx, step, execCtx)
				if err != nil {
					return err
				}
				outputs[idx] = out
				return nil
			})
		}
		waveErr := g.Wait()

		// Bind what the wave produced in declaration order, then report the
		// failure (if any) with the partial trace intact.
		for _, idx := range ready {
			step := &p.Steps[idx]
			if outputs[idx] == nil {
				continue
			}
			if step.Emit != "" {
				if prev, clash := emitted[step.Emit]; clash {
					return e.result(p, done, execCtx), fault.New(fault.EmitConflict,
						"steps %q and %q both emit %q", prev, step.ID, step.Emit)
				}
				emitted[step.Emit] = step.ID
				execCtx[step.Emit] = outputs[idx]
			}
			done[step.ID] = true
		}
		if waveErr != nil {
			return e.result(p, done, execCtx), waveErr
		}
	}

	return e.result(p, done, execCtx), nil
}

// runStep dispatches a single step and records its metrics.
func (e *Executor) runStep(ctx context.Context, step *plan.Step, execCtx map[string]any) (map[string]any, error) {
	start := time.Now()

	switch {
	case step.Kind == plan.KindTool && step.Call != nil:
		handler, ok := e.tools.Lookup(step.Call.Tool)
		if !ok {
			return nil, fault.New(fault.UnknownTool, "step %q: tool %q not registered", step.ID, step.Call.Tool)
		}
		args := interpolateArgs(step.Call.Args, execCtx)
		out, err := handler(ctx, args)
		e.recordStep(ctx, "tool", start)
		e.metrics.RecordToolCall(ctx, string(step.Call.Tool), statusOf(err))
		return out, err

	case step.Kind == plan.KindModel && step.Route != nil:
		userText := inputText(execCtx)
		out, err := e.models.ChatComplete(ctx, step.Route.Name, step.Route.Purpose, userText)
		e.recordStep(ctx, "model", start)
		e.metrics.RecordModelCall(ctx, string(step.Route.Name), statusOf(err))
		return out, err

	default:
		return nil, fault.New(fault.BadStep, "step %q: kind %q with no matching payload", step.ID, step.Kind)
	}
}

// result assembles the partial or final Result: the trace covers done steps
// in declaration order.
func (e *Executor) result(p *plan.Plan, done map[string]bool, execCtx map[string]any) *Result {
	trace := make([]string, 0, len(done))
	for i := range p.Steps {
		step := &p.Steps[i]
		if !done[step.ID] {
			continue
		}
		if step.Kind == plan.KindTool {
			trace = append(trace, fmt.Sprintf("tool %s -> %s", step.Call.Tool, step.Emit))
		} else {
			trace = append(trace, fmt.Sprintf("model %s/%s -> %s", step.Route.Name, step.Route.Purpose, step.Emit))
		}
	}
	return &Result{Context: execCtx, Trace: trace}
}

func (e *Executor) recordStep(ctx context.Context, kind string, start time.Time) {
	e.metrics.StepDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)))
}

// readySteps returns indices of steps whose dependencies are all done, in
// declaration order.
func readySteps(p *plan.Plan, done map[string]bool) []int {
	var ready []int
	for i := range p.Steps {
		step := &p.Steps[i]
		if done[step.ID] {
			continue
		}
		ok := true
		for _, dep := range step.WaitFor {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, i)
		}
	}
	return ready
}

// firstBlocked returns the first undone step in declaration order together
// with its first unmet dependency.
func firstBlocked(p *plan.Plan, done map[string]bool) (stepID, dep string) {
	for i := range p.Steps {
		step := &p.Steps[i]
		if done[step.ID] {
			continue
		}
		for _, d := range step.WaitFor {
			if !done[d] {
				return step.ID, d
			}
		}
	}
	return "", ""
}

// inputText pulls input.text from the execution context for model steps.
func inputText(execCtx map[string]any) string {
	input, _ := execCtx["input"].(map[string]any)
	text, _ := input["text"].(string)
	return text
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if k := fault.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
