// Package providers checks connectivity to the hosted and local AI providers
// the dashboard can fall back to.
package providers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Kind selects the authentication scheme and probe endpoint.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGoogle    Kind = "google"
	KindOllama    Kind = "ollama"
)

// Probe outcome reasons.
const (
	ReasonOK                 = "ok"
	ReasonNoAPIKey           = "no_api_key"
	ReasonUnauthorized       = "unauthorized"
	ReasonServiceUnavailable = "service_unavailable"
	ReasonUnexpectedStatus   = "unexpected_status"
)

const (
	DefaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
	anthropicVersion   = "2023-06-01"
)

// Provider is one configured endpoint.
type Provider struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"-"`
}

// Result is the outcome of a single probe.
type Result struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Connected  bool      `json:"connected"`
	StatusCode int       `json:"statusCode,omitempty"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error,omitempty"`
	Models     []string  `json:"models,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// DefaultBaseURL returns the public API root for kind.
func DefaultBaseURL(k Kind) string {
	switch k {
	case KindOpenAI:
		return "https://api.openai.com"
	case KindAnthropic:
		return "https://api.anthropic.com"
	case KindGoogle:
		return "https://generativelanguage.googleapis.com"
	case KindOllama:
		return "http://127.0.0.1:11434"
	}
	return ""
}

func displayName(k Kind) string {
	switch k {
	case KindOpenAI:
		return "OpenAI"
	case KindAnthropic:
		return "Anthropic"
	case KindGoogle:
		return "Google Gemini"
	case KindOllama:
		return "Local Model (Ollama)"
	}
	return string(k)
}

// NewProvider fills ID, Name and BaseURL defaults from the provider kind.
func NewProvider(k Kind, baseURL, apiKey string) Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL(k)
	}
	return Provider{
		ID:      string(k),
		Name:    displayName(k),
		Kind:    k,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
	}
}

// Prober runs connectivity probes against a fixed provider set.
type Prober struct {
	client      *resty.Client
	providers   []Provider
	concurrency int
	log         zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout bounds every probe request.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.client.SetTimeout(d)
		}
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) {
		timeout := p.client.GetClient().Timeout
		p.client = resty.NewWithClient(hc).SetTimeout(timeout).SetDisableWarn(true)
	}
}

// WithConcurrency bounds ProbeAll.
func WithConcurrency(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger used for probe outcomes.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// New builds a Prober for providers.
func New(providers []Provider, opts ...Option) *Prober {
	p := &Prober{
		client:      resty.New().SetTimeout(DefaultTimeout).SetDisableWarn(true),
		providers:   append([]Provider(nil), providers...),
		concurrency: defaultConcurrency,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Providers returns the configured provider set.
func (p *Prober) Providers() []Provider { return append([]Provider(nil), p.providers...) }

// modelList covers the list shapes of every supported provider.
type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (l *modelList) names() []string {
	var out []string
	for _, d := range l.Data {
		if d.ID != "" {
			out = append(out, d.ID)
		}
	}
	for _, m := range l.Models {
		if m.Name != "" {
			out = append(out, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	sort.Strings(out)
	return out
}

// Probe checks one provider. It never returns an error; failures are
// described by Result.Reason.
func (p *Prober) Probe(ctx context.Context, pr Provider) Result {
	res := Result{ID: pr.ID, Name: pr.Name, CheckedAt: time.Now().UTC()}
	if pr.Kind != KindOllama && pr.APIKey == "" {
		res.Reason = ReasonNoAPIKey
		res.Error = "API key not configured"
		return res
	}

	var list modelList
	req := p.client.R().SetContext(ctx).SetResult(&list).SetHeader("Accept", "application/json")
	path := "/v1/models"
	switch pr.Kind {
	case KindOpenAI:
		req.SetAuthToken(pr.APIKey)
	case KindAnthropic:
		req.SetHeader("x-api-key", pr.APIKey).SetHeader("anthropic-version", anthropicVersion)
	case KindGoogle:
		req.SetQueryParam("key", pr.APIKey)
		path = "/v1beta/models"
	case KindOllama:
		path = "/api/tags"
	}

	start := time.Now()
	resp, err := req.Get(pr.BaseURL + path)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Reason = ReasonServiceUnavailable
		res.Error = err.Error()
		if errors.Is(err, context.Canceled) {
			res.Error = "probe canceled"
		}
		p.log.Debug().Str("provider", pr.ID).Err(err).Msg("provider probe failed")
		return res
	}
	res.StatusCode = resp.StatusCode()
	switch code := resp.StatusCode(); {
	case code < 400:
		res.Connected = true
		res.Reason = ReasonOK
		res.Models = list.names()
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		res.Reason = ReasonUnauthorized
		res.Error = "authentication failed"
	case code >= 500:
		res.Reason = ReasonServiceUnavailable
		res.Error = resp.Status()
	default:
		res.Reason = ReasonUnexpectedStatus
		res.Error = resp.Status()
	}
	p.log.Debug().Str("provider", pr.ID).Int("status", res.StatusCode).Str("reason", res.Reason).Int64("latency_ms", res.LatencyMS).Msg("provider probe")
	return res
}

// ProbeAll probes every configured provider concurrently. Results keep the
// configuration order.
func (p *Prober) ProbeAll(ctx context.Context) []Result {
	out := make([]Result, len(p.providers))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, pr := range p.providers {
		g.Go(func() error {
			out[i] = p.Probe(ctx, pr)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
