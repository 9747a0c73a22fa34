package manager

import (
	"context"
	"strings"
	"testing"
	"time"

	"medmodeld/internal/hostinfo"
	"medmodeld/internal/ollama"
	"medmodeld/internal/ollama/ollamatest"
	"medmodeld/internal/procrun"
)

// harness bundles a manager with the fakes behind it.
type harness struct {
	m      *Manager
	srv    *ollamatest.Server
	runner *procrun.Fake
	pub    *EventLog
	dir    string
}

// runtimeRunner emulates the management CLI against srv: pull succeeds and
// create registers the derived model.
func runtimeRunner(srv *ollamatest.Server) *procrun.Fake {
	return &procrun.Fake{Handler: func(args []string) procrun.FakeResult {
		switch args[1] {
		case "pull":
			return procrun.FakeResult{Stdout: "pulling manifest\rpulling 50%\rpulling 100%\nsuccess\n"}
		case "create":
			srv.AddModel(args[2], 4<<30)
			return procrun.FakeResult{Stdout: "writing manifest\nsuccess\n"}
		}
		return procrun.FakeResult{ExitCode: 1, Stderr: "unexpected command"}
	}}
}

func newHarness(t *testing.T, cfg ManagerConfig, installed ...string) *harness {
	t.Helper()
	srv := ollamatest.NewServer(installed...)
	t.Cleanup(srv.Close)
	rt, err := ollama.New(srv.URL, ollama.WithProbeTimeout(time.Second))
	if err != nil {
		t.Fatalf("runtime client: %v", err)
	}
	h := &harness{srv: srv, pub: NewEventLog(256), dir: t.TempDir()}
	if cfg.Runner == nil {
		h.runner = runtimeRunner(srv)
		cfg.Runner = h.runner
	} else if f, ok := cfg.Runner.(*procrun.Fake); ok {
		h.runner = f
	}
	cfg.Runtime = rt
	cfg.WorkDir = h.dir
	cfg.Publisher = h.pub
	if cfg.Host == nil {
		cfg.Host = &hostinfo.Collector{Runner: &procrun.Fake{}}
	}
	h.m = NewWithConfig(cfg)
	return h
}

// newDownHarness points a manager at a runtime that refuses connections.
func newDownHarness(t *testing.T) *harness {
	t.Helper()
	srv := ollamatest.NewServer()
	url := srv.URL
	srv.Close()
	rt, err := ollama.New(url, ollama.WithProbeTimeout(time.Second))
	if err != nil {
		t.Fatalf("runtime client: %v", err)
	}
	f := &procrun.Fake{}
	return &harness{
		m:      NewWithConfig(ManagerConfig{Runtime: rt, Runner: f, WorkDir: t.TempDir(), Host: &hostinfo.Collector{Runner: &procrun.Fake{}}}),
		srv:    srv,
		runner: f,
	}
}

func (h *harness) mustInstall(t *testing.T, name string) *InstallResult {
	t.Helper()
	res, err := h.m.Install(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("install %s: %v", name, err)
	}
	return res
}

func commandsOf(calls [][]string) string {
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, strings.Join(c[1:2], ""))
	}
	return strings.Join(parts, ",")
}

func containsName(recs []ollama.InstalledModel, name string) bool {
	for _, r := range recs {
		if r.Name == name {
			return true
		}
	}
	return false
}
