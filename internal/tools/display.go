package tools

import "context"

// displayHandler returns the render.display handler: a local no-op that
// fixes a piece of text into the artifact bundle.
func displayHandler() Handler {
	return func(_ context.Context, args map[string]any) (map[string]any, error) {
		text, _ := args["text"].(string)
		return map[string]any{"ok": true, "text": text}, nil
	}
}
