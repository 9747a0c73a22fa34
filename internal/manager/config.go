package manager

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"medmodeld/internal/catalog"
	"medmodeld/internal/hostinfo"
	"medmodeld/internal/ollama"
	"medmodeld/internal/procrun"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultOllamaBin     = "ollama"
	defaultTextTimeout   = 60 * time.Second
	defaultVisionTimeout = 120 * time.Second
	defaultPullTimeout   = 30 * time.Minute
	defaultCreateTimeout = 10 * time.Minute
	defaultStartTimeout  = 15 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Catalog defaults to catalog.Default().
	Catalog *catalog.Catalog
	// Runtime is required.
	Runtime Runtime
	// Runner spawns the runtime management CLI; defaults to procrun.Exec.
	Runner procrun.Runner
	// Host defaults to a hostinfo.Collector sharing Runner.
	Host HostCollector
	// OllamaBin is the management CLI used for pull/create.
	OllamaBin string
	// WorkDir receives rendered modelfiles; defaults to a temp subdirectory.
	WorkDir string

	TextTimeout   time.Duration
	VisionTimeout time.Duration
	PullTimeout   time.Duration
	CreateTimeout time.Duration
	// StartTimeout bounds how long StartRuntime waits for a spawned runtime.
	StartTimeout  time.Duration

	Logger    *zerolog.Logger
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		catalog:   cfg.Catalog,
		rt:        cfg.Runtime,
		runner:    cfg.Runner,
		host:      cfg.Host,
		ollamaBin: cfg.OllamaBin,
		workDir:   cfg.WorkDir,
		publisher: cfg.Publisher,
		installed: make(map[string]ollama.InstalledModel),
		inflight:  make(map[string]string),
		journal:   NewEventLog(journalSize),
	}
	// Apply defaults if unset
	if m.catalog == nil {
		m.catalog = catalog.Default()
	}
	if m.runner == nil {
		m.runner = procrun.Exec{}
	}
	if m.host == nil {
		m.host = &hostinfo.Collector{Runner: m.runner, DiskPath: cfg.WorkDir}
	}
	if m.ollamaBin == "" {
		m.ollamaBin = defaultOllamaBin
	}
	if m.workDir == "" {
		m.workDir = filepath.Join(os.TempDir(), "medmodeld")
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.textTimeout = orDefault(cfg.TextTimeout, defaultTextTimeout)
	m.visionTimeout = orDefault(cfg.VisionTimeout, defaultVisionTimeout)
	m.pullTimeout = orDefault(cfg.PullTimeout, defaultPullTimeout)
	m.createTimeout = orDefault(cfg.CreateTimeout, defaultCreateTimeout)
	m.startTimeout = orDefault(cfg.StartTimeout, defaultStartTimeout)
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	return m
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
