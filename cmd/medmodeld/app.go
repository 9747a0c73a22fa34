package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medmodeld/internal/catalog"
	"medmodeld/internal/config"
	"medmodeld/internal/manager"
	"medmodeld/internal/ollama"
	"medmodeld/internal/providers"
)

// app carries the resolved configuration and logger for one command run.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		lvl = zerolog.InfoLevel
	}
	out := w
	if cfg.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "medmodeld").Logger()
}

func (a *app) catalog() (*catalog.Catalog, error) {
	base := catalog.Default()
	if a.cfg.CatalogFile == "" {
		return base, nil
	}
	extra, err := catalog.LoadFile(a.cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	merged, err := catalog.Merge(base, extra)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.log.Info().Int("custom", len(extra)).Str("file", a.cfg.CatalogFile).Msg("catalog extended")
	return merged, nil
}

func (a *app) runtime() (*ollama.Client, error) {
	return ollama.New(a.cfg.OllamaURL, ollama.WithProbeTimeout(a.cfg.ProbeTimeout()))
}

func (a *app) manager() (*manager.Manager, error) {
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	rt, err := a.runtime()
	if err != nil {
		return nil, err
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Catalog:       cat,
		Runtime:       rt,
		OllamaBin:     a.cfg.OllamaBin,
		WorkDir:       a.cfg.WorkDir,
		TextTimeout:   a.cfg.TextTimeout(),
		VisionTimeout: a.cfg.VisionTimeout(),
		PullTimeout:   a.cfg.PullTimeout(),
		CreateTimeout: a.cfg.CreateTimeout(),
		StartTimeout:  a.cfg.StartTimeout(),
		Logger:        &a.log,
		Publisher:     logPublisher{log: a.log},
	}), nil
}

func (a *app) prober() *providers.Prober {
	return providers.New([]providers.Provider{
		providers.NewProvider(providers.KindOpenAI, a.cfg.OpenAIURL, a.cfg.OpenAIKey),
		providers.NewProvider(providers.KindAnthropic, a.cfg.AnthropicURL, a.cfg.AnthropicKey),
		providers.NewProvider(providers.KindGoogle, a.cfg.GoogleURL, a.cfg.GoogleKey),
		providers.NewProvider(providers.KindOllama, a.cfg.OllamaURL, ""),
	}, providers.WithTimeout(a.cfg.ProviderTimeout()), providers.WithLogger(a.log))
}

// logPublisher turns manager events into debug log lines.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e manager.Event) {
	ev := p.log.Debug().Str("event", e.Name).Str("model", e.Model)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("manager event")
}

// service joins the manager and the provider prober behind httpapi.Service.
type service struct {
	*manager.Manager
	*providers.Prober
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// splitCSV splits a comma-separated flag value, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readImage(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// syncWriter serialises formatted writes from concurrent callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
