package manager

import (
	"context"
	"strings"

	"medmodeld/internal/ollama"
)

// Remove deletes an installed model from the runtime. It is rejected while an
// install or another remove of the same name is running.
func (m *Manager) Remove(ctx context.Context, name string) error {
	name = ollama.NormalizeName(name)
	if strings.TrimSpace(name) == "" {
		return ErrInvalidInput("model name is required")
	}
	if err := m.claim(name, opRemove); err != nil {
		return err
	}
	defer m.release(name)

	if !m.rt.CheckReachable(ctx) {
		setRuntimeReachable(false)
		return ErrRuntimeUnavailable(m.rt.Endpoint())
	}
	if err := m.Sync(ctx); err != nil {
		return err
	}
	if _, ok := m.record(name); !ok {
		return ErrNotInstalled(name)
	}
	if err := m.rt.Delete(ctx, name); err != nil {
		switch {
		case ollama.IsNotFound(err):
			if serr := m.Sync(ctx); serr != nil {
				m.log.Warn().Err(serr).Str("model", name).Msg("sync after missing model")
			}
			return ErrNotInstalled(name)
		case ollama.IsUnavailable(err):
			return ErrRuntimeUnavailable(m.rt.Endpoint())
		default:
			return runtimeError{op: "delete", err: err}
		}
	}
	// The delete already happened; a failed resync only leaves the set stale
	// until the next sync.
	if err := m.Sync(ctx); err != nil {
		m.log.Warn().Err(err).Str("model", name).Msg("sync after remove")
	}
	m.log.Info().Str("model", name).Msg("model removed")
	m.publish(Event{Name: EventRemoveDone, Model: name})
	return nil
}
