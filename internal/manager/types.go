package manager

import (
	"context"
	"time"

	"medmodeld/internal/catalog"
	"medmodeld/internal/hostinfo"
	"medmodeld/internal/ollama"
)

// Runtime is the model-serving runtime as seen by the manager.
type Runtime interface {
	Endpoint() string
	CheckReachable(ctx context.Context) bool
	Version(ctx context.Context) (string, error)
	ListInstalled(ctx context.Context) ([]ollama.InstalledModel, error)
	Show(ctx context.Context, name string) (*ollama.ModelDetails, error)
	Delete(ctx context.Context, name string) error
	Generate(ctx context.Context, req ollama.GenerateRequest) (ollama.GenerateResult, error)
}

// HostCollector snapshots the local machine.
type HostCollector interface {
	Collect(ctx context.Context) hostinfo.Info
}

// RuntimeStatus is computed fresh on every Status call.
type RuntimeStatus struct {
	Reachable      bool          `json:"reachable"`
	Endpoint       string        `json:"endpoint"`
	Version        string        `json:"runtimeVersion,omitempty"`
	InstalledCount int           `json:"installedCount"`
	Installed      []string      `json:"installed"`
	HostInfo       hostinfo.Info `json:"hostInfo"`
	RecentEvents   []Event       `json:"recentEvents"`
	CheckedAt      time.Time     `json:"checkedAt"`
}

// CatalogEntry is a descriptor annotated with whether it is installed.
type CatalogEntry struct {
	catalog.Descriptor
	Installed bool `json:"installed"`
}

// InstallResult reports a completed install.
type InstallResult struct {
	OperationID string                `json:"operationId"`
	Model       string                `json:"model"`
	Record      ollama.InstalledModel `json:"record"`
	Duration    time.Duration         `json:"duration"`
}

// ModelInfo is the getInfo view: the installed record, runtime details and,
// for cataloged names, the descriptor.
type ModelInfo struct {
	Record     ollama.InstalledModel `json:"record"`
	Details    *ollama.ModelDetails  `json:"details"`
	Descriptor *catalog.Descriptor   `json:"descriptor,omitempty"`
}

// SamplingOptions overlay a model's sampling profile for one call. Nil fields
// keep the profile value.
type SamplingOptions struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
}

// InferenceResult is the normalised outcome of one prompt.
type InferenceResult struct {
	ModelName            string    `json:"modelName"`
	OutputText           string    `json:"outputText"`
	TokenCount           int       `json:"tokenCount"`
	RuntimeDurationNanos int64     `json:"runtimeDurationNanos"`
	Timestamp            time.Time `json:"timestamp"`
	Succeeded            bool      `json:"succeeded"`
	ErrorMessage         string    `json:"errorMessage,omitempty"`
}
