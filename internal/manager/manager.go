package manager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medmodeld/internal/catalog"
	"medmodeld/internal/ollama"
	"medmodeld/internal/procrun"
)

// Lifecycle operations that occupy a model's in-flight slot.
const (
	opInstall = "install"
	opRemove  = "remove"
)

// Manager owns the installed-model view of one runtime. The installed map is
// only ever replaced wholesale from a runtime listing.
type Manager struct {
	mu        sync.RWMutex
	installed map[string]ollama.InstalledModel
	syncedAt  time.Time
	inflight  map[string]string

	// syncSeq numbers Sync calls as they start; appliedSeq is the newest
	// listing stored in installed.
	syncSeq    uint64
	appliedSeq uint64

	catalog   *catalog.Catalog
	rt        Runtime
	runner    procrun.Runner
	host      HostCollector
	ollamaBin string
	workDir   string
	publisher EventPublisher
	journal   *EventLog
	log       zerolog.Logger

	textTimeout   time.Duration
	visionTimeout time.Duration
	pullTimeout   time.Duration
	createTimeout time.Duration
	startTimeout  time.Duration

	startMu sync.Mutex
}

// SetEventPublisher installs a publisher; nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	e.Time = time.Now().UTC()
	m.journal.Publish(e)
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Catalog exposes the descriptor set the manager installs from.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// Endpoint is the runtime base URL.
func (m *Manager) Endpoint() string { return m.rt.Endpoint() }

// Ready reports whether the runtime currently answers.
func (m *Manager) Ready(ctx context.Context) bool {
	ok := m.rt.CheckReachable(ctx)
	setRuntimeReachable(ok)
	return ok
}

// Sync re-queries the runtime and replaces the installed set. A listing is
// dropped when a sync that started later has already been applied.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	m.syncSeq++
	seq := m.syncSeq
	m.mu.Unlock()

	list, err := m.rt.ListInstalled(ctx)
	if err != nil {
		if ollama.IsUnavailable(err) {
			setRuntimeReachable(false)
			return ErrRuntimeUnavailable(m.rt.Endpoint())
		}
		return err
	}
	next := make(map[string]ollama.InstalledModel, len(list))
	for _, r := range list {
		next[ollama.NormalizeName(r.Name)] = r
	}
	m.mu.Lock()
	if seq < m.appliedSeq {
		m.mu.Unlock()
		setRuntimeReachable(true)
		m.log.Debug().Uint64("seq", seq).Msg("stale listing dropped")
		return nil
	}
	m.installed = next
	m.appliedSeq = seq
	m.syncedAt = time.Now()
	m.mu.Unlock()
	setRuntimeReachable(true)
	m.log.Debug().Int("installed", len(next)).Msg("installed set synced")
	m.publish(Event{Name: EventSynced, Fields: map[string]any{"installed": len(next)}})
	return nil
}

// Installed returns the last synced records sorted by name.
func (m *Manager) Installed() []ollama.InstalledModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ollama.InstalledModel, 0, len(m.installed))
	for _, r := range m.installed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SyncedAt is when the installed set was last replaced.
func (m *Manager) SyncedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncedAt
}

// ListModels returns every catalog descriptor with its installed flag.
func (m *Manager) ListModels() []CatalogEntry {
	descs := m.catalog.List()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CatalogEntry, 0, len(descs))
	for _, d := range descs {
		_, ok := m.installed[d.Name]
		out = append(out, CatalogEntry{Descriptor: d, Installed: ok})
	}
	return out
}

func (m *Manager) record(name string) (ollama.InstalledModel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.installed[ollama.NormalizeName(name)]
	return r, ok
}

// claim reserves name for op or reports the operation already holding it.
func (m *Manager) claim(name, op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, busy := m.inflight[name]; busy {
		return ErrInstallInProgress(name, cur)
	}
	m.inflight[name] = op
	return nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	delete(m.inflight, name)
	m.mu.Unlock()
}

// InFlight reports the operation currently running for name, if any.
func (m *Manager) InFlight(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.inflight[ollama.NormalizeName(name)]
	return op, ok
}
