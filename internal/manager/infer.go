package manager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"medmodeld/internal/catalog"
	"medmodeld/internal/ollama"
)

const (
	inferText   = "text"
	inferVision = "vision"
)

// RunText sends one prompt to an installed model. Uncataloged models that the
// runtime has installed are allowed and use the clinical sampling profile.
func (m *Manager) RunText(ctx context.Context, name, prompt string, opts SamplingOptions) (*InferenceResult, error) {
	name = ollama.NormalizeName(name)
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidInput("prompt is required")
	}
	sampling := catalog.SamplingFor(catalog.TaskClinical)
	if d, err := m.catalog.Get(name); err == nil {
		sampling = d.Sampling()
	}
	return m.generate(ctx, inferText, name, prompt, nil, sampling, opts, m.textTimeout)
}

// RunVision sends a prompt plus one image to a multimodal model. imageBase64
// may be raw base64 or a data URL.
func (m *Manager) RunVision(ctx context.Context, name, prompt, imageBase64 string, opts SamplingOptions) (*InferenceResult, error) {
	d, err := m.catalog.Get(name)
	if err != nil {
		return nil, ErrUnknownModel(name)
	}
	if !d.Multimodal() {
		return nil, ErrUnsupportedModelKind(d.Name, string(d.Kind))
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidInput("prompt is required")
	}
	img, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, err
	}
	return m.generate(ctx, inferVision, d.Name, prompt, [][]byte{img}, d.Sampling(), opts, m.visionTimeout)
}

func (m *Manager) generate(ctx context.Context, kind, name, prompt string, images [][]byte, s catalog.Sampling, opts SamplingOptions, timeout time.Duration) (*InferenceResult, error) {
	start := time.Now()
	res, err := m.doGenerate(ctx, name, prompt, images, s, opts, timeout)
	inferenceTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	inferenceDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.log.Info().Str("model", name).Str("kind", kind).Dur("dur", time.Since(start)).Err(err).Msg("inference failed")
		return nil, err
	}
	m.log.Info().Str("model", name).Str("kind", kind).Int("tokens", res.TokenCount).Dur("dur", time.Since(start)).Msg("inference done")
	return res, nil
}

func (m *Manager) doGenerate(ctx context.Context, name, prompt string, images [][]byte, s catalog.Sampling, opts SamplingOptions, timeout time.Duration) (*InferenceResult, error) {
	if !m.rt.CheckReachable(ctx) {
		setRuntimeReachable(false)
		return nil, ErrRuntimeUnavailable(m.rt.Endpoint())
	}
	if _, ok := m.record(name); !ok {
		// The cached set may predate installs done outside this process.
		if err := m.Sync(ctx); err != nil {
			return nil, err
		}
		if _, ok := m.record(name); !ok {
			return nil, ErrModelNotInstalled(name)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := m.rt.Generate(cctx, ollama.GenerateRequest{
		Model:   name,
		Prompt:  prompt,
		Images:  images,
		Options: buildOptions(s, opts),
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(cctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
			return nil, ErrInferenceTimeout(fmt.Sprintf("%s gave no answer within %s", name, timeout))
		case ollama.IsUnavailable(err):
			setRuntimeReachable(false)
			return nil, ErrRuntimeUnavailable(m.rt.Endpoint())
		case ollama.IsNotFound(err):
			// Removed behind our back; drop the stale record.
			if serr := m.Sync(ctx); serr != nil {
				m.log.Warn().Err(serr).Str("model", name).Msg("sync after missing model")
			}
			return nil, ErrModelNotInstalled(name)
		default:
			return nil, ErrInferenceFailed(err.Error())
		}
	}
	return &InferenceResult{
		ModelName:            name,
		OutputText:           out.Response,
		TokenCount:           out.EvalCount,
		RuntimeDurationNanos: out.TotalDuration.Nanoseconds(),
		Timestamp:            time.Now().UTC(),
		Succeeded:            true,
	}, nil
}

// buildOptions overlays per-call options on the model's sampling profile.
func buildOptions(s catalog.Sampling, o SamplingOptions) map[string]any {
	opts := map[string]any{
		"temperature":    s.Temperature,
		"top_p":          s.TopP,
		"top_k":          s.TopK,
		"repeat_penalty": s.RepeatPenalty,
	}
	if o.Temperature != nil {
		opts["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		opts["top_p"] = *o.TopP
	}
	if o.TopK != nil {
		opts["top_k"] = *o.TopK
	}
	if o.RepeatPenalty != nil {
		opts["repeat_penalty"] = *o.RepeatPenalty
	}
	if o.MaxTokens != nil && *o.MaxTokens > 0 {
		opts["num_predict"] = *o.MaxTokens
	}
	return opts
}

// DecodeImage accepts raw base64 (padded or not) or a data URL.
func DecodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, ErrInvalidInput("malformed data URL")
		}
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrInvalidInput("image data is required")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, ErrInvalidInput("image is not valid base64")
	}
	return b, nil
}
