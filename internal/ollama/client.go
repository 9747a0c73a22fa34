// Package ollama talks to the local model-serving runtime over its HTTP API:
// liveness probing, installed-model enumeration, inspection, deletion and
// single-shot generation.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultEndpoint is where a stock runtime listens.
const DefaultEndpoint = "http://127.0.0.1:11434"

// MaxProbeTimeout caps CheckReachable regardless of configuration.
const MaxProbeTimeout = 5 * time.Second

// InstalledModel mirrors one entry of the runtime's model list.
type InstalledModel struct {
	Name              string    `json:"name"`
	SizeBytes         int64     `json:"sizeBytes"`
	LastModified      time.Time `json:"lastModified"`
	Digest            string    `json:"digest"`
	Family            string    `json:"family,omitempty"`
	ParameterSize     string    `json:"parameterSize,omitempty"`
	QuantizationLevel string    `json:"quantizationLevel,omitempty"`
}

// ModelDetails is the runtime's description of an installed model.
type ModelDetails struct {
	Name              string    `json:"name"`
	Modelfile         string    `json:"modelfile,omitempty"`
	Parameters        string    `json:"parameters,omitempty"`
	Template          string    `json:"template,omitempty"`
	System            string    `json:"system,omitempty"`
	License           string    `json:"license,omitempty"`
	Format            string    `json:"format,omitempty"`
	Family            string    `json:"family,omitempty"`
	ParameterSize     string    `json:"parameterSize,omitempty"`
	QuantizationLevel string    `json:"quantizationLevel,omitempty"`
	ModifiedAt        time.Time `json:"modifiedAt,omitempty"`
}

// GenerateRequest is one non-streaming completion call.
type GenerateRequest struct {
	Model   string
	Prompt  string
	System  string
	Images  [][]byte
	Options map[string]any
}

// GenerateResult carries the output plus runtime-reported counters. Counters
// are zero when the runtime omits them.
type GenerateResult struct {
	Model           string
	Response        string
	DoneReason      string
	EvalCount       int
	PromptEvalCount int
	TotalDuration   time.Duration
}

// Client wraps the runtime API client.
type Client struct {
	endpoint     string
	api          *api.Client
	probeTimeout time.Duration
}

// Option customises a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient   *http.Client
	probeTimeout time.Duration
}

// WithHTTPClient overrides the HTTP client. Its Timeout should stay zero;
// every call carries its own context deadline.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithProbeTimeout sets the CheckReachable timeout, capped at MaxProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.probeTimeout = d }
}

// New builds a client for baseURL (DefaultEndpoint when empty).
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultEndpoint
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse runtime url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("runtime url must be absolute: %q", baseURL)
	}
	o := clientOptions{httpClient: &http.Client{Timeout: 0}, probeTimeout: MaxProbeTimeout}
	for _, fn := range opts {
		fn(&o)
	}
	if o.probeTimeout <= 0 || o.probeTimeout > MaxProbeTimeout {
		o.probeTimeout = MaxProbeTimeout
	}
	return &Client{endpoint: u.String(), api: api.NewClient(u, o.httpClient), probeTimeout: o.probeTimeout}, nil
}

// Endpoint returns the runtime base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// CheckReachable reports whether the list endpoint answers successfully within
// the probe timeout. Failure is a normal outcome, never an error.
func (c *Client) CheckReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	_, err := c.api.List(ctx)
	return err == nil
}

// Version returns the runtime version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := c.api.Version(ctx)
	if err != nil {
		return "", c.classify(err)
	}
	return v, nil
}

// ListInstalled enumerates installed models sorted by name. Any failure to get
// a list means the runtime is unreachable and yields an unavailable error.
func (c *Client) ListInstalled(ctx context.Context) ([]InstalledModel, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailableError{endpoint: c.endpoint, cause: err}
	}
	out := make([]InstalledModel, 0, len(resp.Models))
	for _, m := range resp.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		out = append(out, InstalledModel{
			Name:              NormalizeName(name),
			SizeBytes:         m.Size,
			LastModified:      m.ModifiedAt,
			Digest:            m.Digest,
			Family:            m.Details.Family,
			ParameterSize:     m.Details.ParameterSize,
			QuantizationLevel: m.Details.QuantizationLevel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Show fetches the runtime's details for name.
func (c *Client) Show(ctx context.Context, name string) (*ModelDetails, error) {
	resp, err := c.api.Show(ctx, &api.ShowRequest{Model: name})
	if err != nil {
		return nil, c.classify(err)
	}
	return &ModelDetails{
		Name:              NormalizeName(name),
		Modelfile:         resp.Modelfile,
		Parameters:        resp.Parameters,
		Template:          resp.Template,
		System:            resp.System,
		License:           resp.License,
		Format:            resp.Details.Format,
		Family:            resp.Details.Family,
		ParameterSize:     resp.Details.ParameterSize,
		QuantizationLevel: resp.Details.QuantizationLevel,
		ModifiedAt:        resp.ModifiedAt,
	}, nil
}

// Delete removes name from the runtime.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.api.Delete(ctx, &api.DeleteRequest{Model: name}); err != nil {
		return c.classify(err)
	}
	return nil
}

// Generate runs one blocking completion. Should the runtime stream anyway,
// chunks are concatenated and counters are taken from the final chunk.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	stream := false
	gr := &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  &stream,
		Options: req.Options,
	}
	for _, img := range req.Images {
		gr.Images = append(gr.Images, api.ImageData(img))
	}
	var (
		b   strings.Builder
		res GenerateResult
	)
	err := c.api.Generate(ctx, gr, func(r api.GenerateResponse) error {
		b.WriteString(r.Response)
		if r.Done {
			res.Model = r.Model
			res.DoneReason = r.DoneReason
			res.EvalCount = r.EvalCount
			res.PromptEvalCount = r.PromptEvalCount
			res.TotalDuration = r.TotalDuration
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, c.classify(err)
	}
	if res.Model == "" {
		res.Model = req.Model
	}
	res.Response = b.String()
	return res, nil
}

// NormalizeName drops the implicit ":latest" tag.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ":latest")
}

type unavailableError struct {
	endpoint string
	cause    error
}

func (e unavailableError) Error() string {
	return fmt.Sprintf("runtime unavailable at %s: %v", e.endpoint, e.cause)
}

func (e unavailableError) Unwrap() error { return e.cause }

// IsUnavailable reports whether err means the runtime could not be reached.
func IsUnavailable(err error) bool {
	var ue unavailableError
	return errors.As(err, &ue)
}

// IsNotFound reports whether the runtime answered 404 for the named model.
func IsNotFound(err error) bool {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	var sp *api.StatusError
	return errors.As(err, &sp) && sp.StatusCode == http.StatusNotFound
}

// classify tags transport failures as unavailable and passes everything else through.
func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isConnError(err) {
		return unavailableError{endpoint: c.endpoint, cause: err}
	}
	return err
}

func isConnError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
