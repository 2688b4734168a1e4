package plan

import (
	"github.com/shushunyam/eyeofterror/internal/fault"
)

// Validate checks p against the schema's structural invariants. It is a total
// function over decoded plans: it either accepts p in full or returns a
// fault.SchemaError naming the offending path — never partial acceptance.
func Validate(p *Plan) error {
	if p.Version != Version {
		return fault.New(fault.SchemaError, "version: got %q, want %q", p.Version, Version)
	}
	if len(p.Steps) == 0 {
		return fault.New(fault.SchemaError, "steps: must not be empty")
	}

	ids := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fault.New(fault.SchemaError, "steps[%d].id: must not be empty", i)
		}
		if prev, ok := ids[s.ID]; ok {
			return fault.New(fault.SchemaError, "steps[%d].id: %q duplicates steps[%d]", i, s.ID, prev)
		}
		ids[s.ID] = i

		if !s.Kind.IsValid() {
			return fault.New(fault.SchemaError, "steps[%d].kind: %q is not tool or model", i, s.Kind)
		}

		switch s.Kind {
		case KindTool:
			if s.Route != nil {
				return fault.New(fault.SchemaError, "steps[%d].route: must be absent when kind is tool", i)
			}
			if s.Call == nil {
				return fault.New(fault.SchemaError, "steps[%d].call: required when kind is tool", i)
			}
			if !s.Call.Tool.IsValid() {
				return fault.New(fault.SchemaError, "steps[%d].call.tool: unknown tool %q", i, s.Call.Tool)
			}
		case KindModel:
			if s.Call != nil {
				return fault.New(fault.SchemaError, "steps[%d].call: must be absent when kind is model", i)
			}
			if s.Route == nil {
				return fault.New(fault.SchemaError, "steps[%d].route: required when kind is model", i)
			}
			if !s.Route.Name.IsValid() {
				return fault.New(fault.SchemaError, "steps[%d].route.name: unknown model %q", i, s.Route.Name)
			}
			if !s.Route.Purpose.IsValid() {
				return fault.New(fault.SchemaError, "steps[%d].route.purpose: unknown purpose %q", i, s.Route.Purpose)
			}
		}
	}

	// Unknown wait_for references are not a schema problem: they surface at
	// execution time as DependencyMissing, per the DAG-violation taxonomy.
	for i, s := range p.Steps {
		for _, dep := range s.WaitFor {
			if dep == s.ID {
				return fault.New(fault.SchemaError, "steps[%d].wait_for: step %q depends on itself", i, s.ID)
			}
		}
	}

	if cyclic := findCycle(p.Steps, ids); cyclic != "" {
		return fault.New(fault.SchemaError, "steps: dependency cycle through %q", cyclic)
	}
	return nil
}

// findCycle runs a Kahn topological pass over the wait_for edges and returns
// the id of one step left on a cycle, or "" when the graph is acyclic. Edges
// to ids outside the plan carry no cycle and are ignored here.
func findCycle(steps []Step, ids map[string]int) string {
	indegree := make([]int, len(steps))
	dependents := make(map[int][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.WaitFor {
			j, ok := ids[dep]
			if !ok {
				continue
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(steps))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if visited == len(steps) {
		return ""
	}
	for i, d := range indegree {
		if d > 0 {
			return steps[i].ID
		}
	}
	return ""
}
