package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shushunyam/eyeofterror/internal/fault"
)

func TestPostJSON_Success(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	pool := NewPool()
	data, err := PostJSON(context.Background(), pool.Short, srv.URL, map[string]any{"text": "привет"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("body = %s", data)
	}
	if gotBody["text"] != "привет" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestPostJSON_Non2xxKeepsStatusAndExcerpt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	pool := NewPool()
	_, err := PostJSON(context.Background(), pool.Short, srv.URL, nil)
	if err == nil {
		t.Fatal("PostJSON() = nil, want error")
	}

	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T", err)
	}
	if fe.Kind != fault.HTTPStatus {
		t.Errorf("kind = %q, want http_status", fe.Kind)
	}
	if fe.Code != http.StatusTeapot {
		t.Errorf("code = %d, want 418", fe.Code)
	}
	if !strings.Contains(fe.Message, "short and stout") {
		t.Errorf("message = %q, want body excerpt", fe.Message)
	}
}

func TestPostJSON_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	pool := NewPool(WithShortTimeout(50 * time.Millisecond))
	_, err := PostJSON(context.Background(), pool.Short, srv.URL, nil)
	if fault.KindOf(err) != fault.Timeout {
		t.Fatalf("kind = %q (err %v), want timeout", fault.KindOf(err), err)
	}
}

func TestPostJSON_ContextDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pool := NewPool()
	_, err := PostJSON(ctx, pool.Long, srv.URL, nil)
	if fault.KindOf(err) != fault.Timeout {
		t.Fatalf("kind = %q (err %v), want timeout", fault.KindOf(err), err)
	}
}

func TestPostJSON_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	pool := NewPool()
	_, err := PostJSON(ctx, pool.Long, srv.URL, nil)
	if fault.KindOf(err) != fault.Canceled {
		t.Fatalf("kind = %q (err %v), want canceled", fault.KindOf(err), err)
	}
}

func TestPostJSON_ConnectionRefused(t *testing.T) {
	t.Parallel()

	// A server that is already closed guarantees a refused connection.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	pool := NewPool()
	_, err := PostJSON(context.Background(), pool.Short, url, nil)
	if fault.KindOf(err) != fault.Transport {
		t.Fatalf("kind = %q (err %v), want transport", fault.KindOf(err), err)
	}
}
