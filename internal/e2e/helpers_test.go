package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medmodeld/internal/hostinfo"
	"medmodeld/internal/httpapi"
	"medmodeld/internal/manager"
	"medmodeld/internal/ollama"
	"medmodeld/internal/ollama/ollamatest"
	"medmodeld/internal/procrun"
)

// stack is a running API in front of a manager, a fake runtime and a fake CLI.
type stack struct {
	api     *httptest.Server
	mgr     *manager.Manager
	runtime *ollamatest.Server
	runner  *procrun.Fake
}

// ollamaCLI emulates `ollama pull` and `ollama create` against the fake runtime.
func ollamaCLI(rt *ollamatest.Server, gate chan struct{}) *procrun.Fake {
	return &procrun.Fake{Gate: gate, Handler: func(args []string) procrun.FakeResult {
		switch args[1] {
		case "pull":
			return procrun.FakeResult{Stdout: "pulling manifest\nsuccess\n"}
		case "create":
			rt.AddModel(args[2], 4<<30)
			return procrun.FakeResult{Stdout: "success\n"}
		}
		return procrun.FakeResult{ExitCode: 1, Stderr: "unknown command"}
	}}
}

func newStack(t *testing.T, gate chan struct{}, installed ...string) *stack {
	t.Helper()
	rt := ollamatest.NewServer(installed...)
	t.Cleanup(rt.Close)
	return newStackFor(t, rt, rt.URL, gate)
}

func newStackFor(t *testing.T, rt *ollamatest.Server, url string, gate chan struct{}) *stack {
	t.Helper()
	client, err := ollama.New(url, ollama.WithProbeTimeout(time.Second))
	if err != nil {
		t.Fatalf("runtime client: %v", err)
	}
	runner := ollamaCLI(rt, gate)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Runtime: client,
		Runner:  runner,
		Host:    &hostinfo.Collector{Runner: &procrun.Fake{}, DiskPath: t.TempDir()},
		WorkDir: t.TempDir(),
	})
	api := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(api.Close)
	return &stack{api: api, mgr: mgr, runtime: rt, runner: runner}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (s *stack) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.api.URL+path, rdr)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v body=%q", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func (s *stack) raw(t *testing.T, method, path string, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, s.api.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data: %v raw=%q", err, raw)
	}
	return v
}
