package manager

import (
	"context"

	"medmodeld/internal/ollama"
)

// GetInfo returns the installed record and runtime details for name.
func (m *Manager) GetInfo(ctx context.Context, name string) (*ModelInfo, error) {
	name = ollama.NormalizeName(name)
	if !m.rt.CheckReachable(ctx) {
		setRuntimeReachable(false)
		return nil, ErrRuntimeUnavailable(m.rt.Endpoint())
	}
	if err := m.Sync(ctx); err != nil {
		return nil, err
	}
	rec, ok := m.record(name)
	if !ok {
		return nil, ErrNotInstalled(name)
	}
	det, err := m.rt.Show(ctx, name)
	if err != nil {
		switch {
		case ollama.IsNotFound(err):
			return nil, ErrNotInstalled(name)
		case ollama.IsUnavailable(err):
			return nil, ErrRuntimeUnavailable(m.rt.Endpoint())
		default:
			return nil, runtimeError{op: "show", err: err}
		}
	}
	info := &ModelInfo{Record: rec, Details: det}
	if d, err := m.catalog.Get(name); err == nil {
		info.Descriptor = &d
	}
	return info, nil
}
