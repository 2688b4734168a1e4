package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/httpx"
	"github.com/shushunyam/eyeofterror/internal/plan"
)

// fakeWAV is a stand-in synthesis payload; real WAV headers are irrelevant to
// the handler, which treats the body as opaque bytes.
var fakeWAV = []byte("RIFFxxxxWAVEfmt ")

func newRegistry(t *testing.T, cfg config.ToolsConfig) *Registry {
	t.Helper()
	return New(cfg, httpx.NewPool())
}

func TestRegistry_ClosedToolSet(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, config.ToolsConfig{})
	for _, name := range []plan.ToolName{plan.ToolSpeak, plan.ToolTranscribe, plan.ToolDisplay} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("Lookup(%q) = false, want true", name)
		}
	}
	if _, ok := reg.Lookup("fs.delete"); ok {
		t.Error("Lookup(fs.delete) = true, want false")
	}
}

func TestSpeak_SynthesisRoundTrip(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speak_full" {
			t.Errorf("path = %q, want /speak_full", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(fakeWAV)
	}))
	defer srv.Close()

	reg := newRegistry(t, config.ToolsConfig{WarpWailsURL: srv.URL, DefaultSpeaker: "kseniya"})
	speak, _ := reg.Lookup(plan.ToolSpeak)

	out, err := speak(context.Background(), map[string]any{
		"text":   "Принято. Распознал.",
		"preset": "imp_light",
	})
	if err != nil {
		t.Fatalf("speak error = %v", err)
	}

	if gotPayload["text"] != "Принято. Распознал." {
		t.Errorf("payload text = %v", gotPayload["text"])
	}
	if gotPayload["speaker"] != "kseniya" {
		t.Errorf("payload speaker = %v, want default", gotPayload["speaker"])
	}
	if gotPayload["preset"] != "imp_light" {
		t.Errorf("payload preset = %v, want pass-through", gotPayload["preset"])
	}

	if out["type"] != "audio/wav" {
		t.Errorf("type = %v", out["type"])
	}
	if out["speaker"] != "kseniya" {
		t.Errorf("speaker = %v", out["speaker"])
	}
	if out["data_b64"] != base64.StdEncoding.EncodeToString(fakeWAV) {
		t.Errorf("data_b64 = %v", out["data_b64"])
	}
}

func TestSpeak_ExplicitSpeakerWins(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["speaker"] != "baya" {
			t.Errorf("payload speaker = %v, want baya", payload["speaker"])
		}
		w.Write(fakeWAV)
	}))
	defer srv.Close()

	reg := newRegistry(t, config.ToolsConfig{WarpWailsURL: srv.URL, DefaultSpeaker: "kseniya"})
	speak, _ := reg.Lookup(plan.ToolSpeak)

	out, err := speak(context.Background(), map[string]any{"text": "привет", "speaker": "baya"})
	if err != nil {
		t.Fatalf("speak error = %v", err)
	}
	if out["speaker"] != "baya" {
		t.Errorf("speaker = %v", out["speaker"])
	}
}

func TestSpeak_MissingText(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, config.ToolsConfig{WarpWailsURL: "http://unused"})
	speak, _ := reg.Lookup(plan.ToolSpeak)

	for _, args := range []map[string]any{
		nil,
		{"text": ""},
		{"text": 42},
	} {
		if _, err := speak(context.Background(), args); fault.KindOf(err) != fault.ToolError {
			t.Errorf("speak(%v) kind = %q, want tool_error", args, fault.KindOf(err))
		}
	}
}

func TestSpeak_BackendFailureKeepsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "pipeline exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := newRegistry(t, config.ToolsConfig{WarpWailsURL: srv.URL})
	speak, _ := reg.Lookup(plan.ToolSpeak)

	_, err := speak(context.Background(), map[string]any{"text": "x"})
	if fault.KindOf(err) != fault.HTTPStatus {
		t.Fatalf("kind = %q (err %v), want http_status", fault.KindOf(err), err)
	}
}

func TestTranscribe_RoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("path = %q, want /transcribe", r.URL.Path)
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["audio_b64"] != "UklGRg==" {
			t.Errorf("payload = %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "привет, хозяин"})
	}))
	defer srv.Close()

	reg := newRegistry(t, config.ToolsConfig{STTBase: srv.URL})
	transcribe, _ := reg.Lookup(plan.ToolTranscribe)

	out, err := transcribe(context.Background(), map[string]any{"audio_b64": "UklGRg=="})
	if err != nil {
		t.Fatalf("transcribe error = %v", err)
	}
	if out["text"] != "привет, хозяин" {
		t.Errorf("text = %v", out["text"])
	}
}

func TestTranscribe_MissingAudio(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, config.ToolsConfig{STTBase: "http://unused"})
	transcribe, _ := reg.Lookup(plan.ToolTranscribe)

	if _, err := transcribe(context.Background(), nil); fault.KindOf(err) != fault.ToolError {
		t.Fatalf("kind = %q, want tool_error", fault.KindOf(err))
	}
}

func TestTranscribe_GarbageResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	reg := newRegistry(t, config.ToolsConfig{STTBase: srv.URL})
	transcribe, _ := reg.Lookup(plan.ToolTranscribe)

	_, err := transcribe(context.Background(), map[string]any{"audio_b64": "UklGRg=="})
	if fault.KindOf(err) != fault.ToolError {
		t.Fatalf("kind = %q (err %v), want tool_error", fault.KindOf(err), err)
	}
}

func TestDisplay_EchoesText(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, config.ToolsConfig{})
	display, _ := reg.Lookup(plan.ToolDisplay)

	out, err := display(context.Background(), map[string]any{"text": "на экран"})
	if err != nil {
		t.Fatalf("display error = %v", err)
	}
	if out["ok"] != true || out["text"] != "на экран" {
		t.Errorf("out = %v", out)
	}

	// Absent text degrades to the empty string.
	out, err = display(context.Background(), nil)
	if err != nil {
		t.Fatalf("display error = %v", err)
	}
	if out["text"] != "" {
		t.Errorf("text = %v, want empty", out["text"])
	}
}
