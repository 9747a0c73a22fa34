package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medmodeld/internal/ollama/ollamatest"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(url, WithProbeTimeout(time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewValidatesURL(t *testing.T) {
	if _, err := New("not a url"); err == nil {
		t.Fatalf("expected error for relative url")
	}
	c, err := New("")
	if err != nil {
		t.Fatalf("default endpoint: %v", err)
	}
	if c.Endpoint() != DefaultEndpoint {
		t.Fatalf("endpoint = %s", c.Endpoint())
	}
}

func TestProbeTimeoutIsCapped(t *testing.T) {
	c, err := New("", WithProbeTimeout(time.Minute))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.probeTimeout != MaxProbeTimeout {
		t.Fatalf("probe timeout = %s", c.probeTimeout)
	}
}

func TestCheckReachable(t *testing.T) {
	srv := ollamatest.NewServer()
	t.Cleanup(srv.Close)
	if !newTestClient(t, srv.URL).CheckReachable(context.Background()) {
		t.Fatalf("expected reachable")
	}
}

func TestCheckReachableRefused(t *testing.T) {
	srv := ollamatest.NewServer()
	url := srv.URL
	srv.Close()
	c := newTestClient(t, url)
	if c.CheckReachable(context.Background()) {
		t.Fatalf("expected unreachable for closed server")
	}
	if _, err := c.ListInstalled(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCheckReachableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	if newTestClient(t, srv.URL).CheckReachable(context.Background()) {
		t.Fatalf("5xx must not count as reachable")
	}
}

func TestCheckReachableTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	c, _ := New(srv.URL, WithProbeTimeout(50*time.Millisecond))
	start := time.Now()
	if c.CheckReachable(context.Background()) {
		t.Fatalf("expected unreachable on timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("probe did not honour timeout")
	}
}

func TestListInstalledNormalisesNames(t *testing.T) {
	srv := ollamatest.NewServer("mistral-medical", "llama2:7b")
	t.Cleanup(srv.Close)
	got, err := newTestClient(t, srv.URL).ListInstalled(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 models, got %+v", got)
	}
	if got[0].Name != "llama2:7b" || got[1].Name != "mistral-medical" {
		t.Fatalf("unexpected names: %+v", got)
	}
	if got[1].SizeBytes != 1<<30 || got[1].Digest == "" || got[1].LastModified.IsZero() {
		t.Fatalf("record fields not parsed: %+v", got[1])
	}
}

func TestShowAndDelete(t *testing.T) {
	srv := ollamatest.NewServer("mistral-medical")
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()
	d, err := c.Show(ctx, "mistral-medical")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.HasPrefix(d.Modelfile, "FROM") || d.Family != "llama" {
		t.Fatalf("unexpected details: %+v", d)
	}
	if err := c.Delete(ctx, "mistral-medical"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if srv.HasModel("mistral-medical") {
		t.Fatalf("model still present")
	}
	if err := c.Delete(ctx, "mistral-medical"); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := c.Show(ctx, "mistral-medical"); !IsNotFound(err) {
		t.Fatalf("expected not found on show, got %v", err)
	}
}

func TestGeneratePassesThroughCounters(t *testing.T) {
	srv := ollamatest.NewServer("llava-medical")
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)
	res, err := c.Generate(context.Background(), GenerateRequest{
		Model:   "llava-medical",
		Prompt:  "describe",
		Images:  [][]byte{[]byte("png-bytes")},
		Options: map[string]any{"temperature": 0.2},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Response != "Assessment: describe" || res.EvalCount != 12 || res.TotalDuration != 1500*time.Millisecond {
		t.Fatalf("unexpected result: %+v", res)
	}
	last := srv.LastGenerate()
	if last == nil || len(last.Images) != 1 || last.Stream == nil || *last.Stream {
		t.Fatalf("request not forwarded as non-streaming with image: %+v", last)
	}
	if last.Options["temperature"] != 0.2 {
		t.Fatalf("options not forwarded: %v", last.Options)
	}
}

func TestGenerateMissingCountersDefaultToZero(t *testing.T) {
	srv := ollamatest.NewServer("mistral-medical")
	t.Cleanup(srv.Close)
	srv.Generate = func(r ollamatest.GenerateRequest) ollamatest.GenerateReply {
		return ollamatest.GenerateReply{Response: "ok", OmitMetrics: true}
	}
	res, err := newTestClient(t, srv.URL).Generate(context.Background(), GenerateRequest{Model: "mistral-medical", Prompt: "x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.EvalCount != 0 || res.TotalDuration != 0 {
		t.Fatalf("expected zero counters, got %+v", res)
	}
}

func TestGenerateRuntimeError(t *testing.T) {
	srv := ollamatest.NewServer("mistral-medical")
	t.Cleanup(srv.Close)
	srv.Generate = func(r ollamatest.GenerateRequest) ollamatest.GenerateReply {
		return ollamatest.GenerateReply{Status: http.StatusInternalServerError, Error: "out of memory"}
	}
	_, err := newTestClient(t, srv.URL).Generate(context.Background(), GenerateRequest{Model: "mistral-medical", Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected runtime error, got %v", err)
	}
	if IsUnavailable(err) {
		t.Fatalf("runtime-side error must not be classified as unavailable")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{"a:latest": "a", "a:7b": "a:7b", " b ": "b"}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("%q -> %q, want %q", in, got, want)
		}
	}
}
