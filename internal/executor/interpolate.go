package executor

import "strings"

// interpolateArgs resolves `${path}` references in top-level string argument
// values against the execution context. Only values that are exactly one
// reference are substituted; embedded references inside longer strings pass
// through untouched. A path that does not resolve yields the empty string.
func interpolateArgs(args map[string]any, execCtx map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if ok && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			out[k] = resolvePath(execCtx, s[2:len(s)-1])
			continue
		}
		out[k] = v
	}
	return out
}

// resolvePath walks a dotted path through nested maps. Any miss or non-map
// intermediate collapses to the empty string.
func resolvePath(execCtx map[string]any, path string) any {
	cur := any(execCtx)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	if cur == nil {
		return ""
	}
	return cur
}
