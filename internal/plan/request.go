package plan

// Request is the payload a planning phase is invoked with: the inbound user
// message on phase A, or the produced text with phase "postprocess" on
// phase B. It is serialised as-is into the controller prompt.
type Request struct {
	Text     string         `json:"text,omitempty"`
	AudioB64 string         `json:"audio_b64,omitempty"`
	Phase    string         `json:"phase,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// HasInput reports whether the request carries at least one of text or audio.
func (r Request) HasInput() bool {
	return r.Text != "" || r.AudioB64 != ""
}

// AsContext returns the map form of r used to seed the execution context
// under the "input" name.
func (r Request) AsContext() map[string]any {
	m := map[string]any{"text": r.Text}
	if r.AudioB64 != "" {
		m["audio_b64"] = r.AudioB64
	}
	if r.Phase != "" {
		m["phase"] = r.Phase
	}
	if len(r.Meta) > 0 {
		m["meta"] = r.Meta
	}
	return m
}
