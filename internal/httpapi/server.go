package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medmodeld/internal/manager"
	"medmodeld/internal/ollama"
	"medmodeld/internal/providers"
	"medmodeld/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status(ctx context.Context) manager.RuntimeStatus
	ListModels() []manager.CatalogEntry
	Sync(ctx context.Context) error
	Installed() []ollama.InstalledModel
	GetInfo(ctx context.Context, name string) (*manager.ModelInfo, error)
	Install(ctx context.Context, name string, onProgress manager.ProgressFunc) (*manager.InstallResult, error)
	Remove(ctx context.Context, name string) error
	RunText(ctx context.Context, name, prompt string, opts manager.SamplingOptions) (*manager.InferenceResult, error)
	RunVision(ctx context.Context, name, prompt, imageBase64 string, opts manager.SamplingOptions) (*manager.InferenceResult, error)
	Ready(ctx context.Context) bool
	StartRuntime(ctx context.Context) (*manager.StartResult, error)
}

// ProviderChecker is implemented by services that can probe external providers.
// /providers/status is only mounted when the service implements it.
type ProviderChecker interface {
	ProbeAll(ctx context.Context) []providers.Result
}

// NewMux builds the HTTP handler.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)
	if mw := corsMiddleware(); mw != nil {
		r.Use(mw)
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := &handlers{svc: svc}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.readyz)
	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/local", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/status", h.status)
		r.Get("/models", h.models)
		r.Get("/installed", h.installed)
		r.Get("/models/{name}", h.info)
		r.With(requireRole(RoleAdmin)).Delete("/models/{name}", h.remove)
		r.With(requireRole(RoleAdmin)).Post("/install", h.install)
		r.With(requireRole(RoleAdmin)).Post("/start", h.start)
		r.Post("/process", h.process)
	})

	if pc, ok := svc.(ProviderChecker); ok {
		r.With(requireAuth).Get("/providers/status", func(w http.ResponseWriter, r *http.Request) {
			writeData(w, pc.ProbeAll(r.Context()))
		})
	}

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// readyz godoc
//
//	@Summary	Runtime readiness
//	@Success	200	{string}	string	"ready"
//	@Failure	503	{string}	string	"runtime unavailable"
//	@Router		/readyz [get]
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ready(r.Context()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("runtime unavailable"))
}

// status godoc
//
//	@Summary	Runtime and host status
//	@Produce	json
//	@Success	200	{object}	types.Envelope{data=manager.RuntimeStatus}
//	@Router		/local/status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.Status(r.Context()))
}

// models godoc
//
//	@Summary	Catalog with installed flags
//	@Produce	json
//	@Success	200	{object}	types.Envelope{data=[]manager.CatalogEntry}
//	@Router		/local/models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.ListModels())
}

// installed godoc
//
//	@Summary	Resynchronise and list installed models
//	@Produce	json
//	@Success	200	{object}	types.Envelope{data=[]ollama.InstalledModel}
//	@Failure	503	{object}	types.Envelope
//	@Router		/local/installed [get]
func (h *handlers) installed(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sync(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, h.svc.Installed())
}

// info godoc
//
//	@Summary	Installed model details
//	@Produce	json
//	@Param		name	path		string	true	"model name"
//	@Success	200		{object}	types.Envelope{data=manager.ModelInfo}
//	@Failure	404		{object}	types.Envelope
//	@Router		/local/models/{name} [get]
func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	name, ok := modelParam(w, r)
	if !ok {
		return
	}
	info, err := h.svc.GetInfo(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, info)
}

// remove godoc
//
//	@Summary	Remove an installed model
//	@Produce	json
//	@Param		name	path		string	true	"model name"
//	@Success	200		{object}	types.Envelope
//	@Failure	404		{object}	types.Envelope
//	@Failure	409		{object}	types.Envelope
//	@Router		/local/models/{name} [delete]
func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	name, ok := modelParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Remove(lifecycleContext(), name); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"model": name})
}

// start godoc
//
//	@Summary	Start the local runtime when it is not answering
//	@Produce	json
//	@Success	200	{object}	types.Envelope{data=manager.StartResult}
//	@Failure	502	{object}	types.Envelope
//	@Router		/local/start [post]
func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StartRuntime(lifecycleContext())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, res)
}

// install godoc
//
//	@Summary	Install a cataloged model
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.InstallRequest	true	"model to install"
//	@Param		stream	query		bool					false	"stream NDJSON progress"
//	@Success	200		{object}	types.Envelope{data=manager.InstallResult}
//	@Failure	404		{object}	types.Envelope
//	@Failure	409		{object}	types.Envelope
//	@Failure	502		{object}	types.Envelope
//	@Failure	503		{object}	types.Envelope
//	@Router		/local/install [post]
func (h *handlers) install(w http.ResponseWriter, r *http.Request) {
	var req types.InstallRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.ModelName == "" {
		writeFailure(w, http.StatusBadRequest, "modelName is required")
		return
	}
	ctx := lifecycleContext()

	if !wantsStream(r) {
		res, err := h.svc.Install(ctx, req.ModelName, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, res)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	out := io.Writer(w)
	if debugRequested(r) {
		out = io.MultiWriter(w, &streamLogWriter{stream: "install", rid: middleware.GetReqID(r.Context())})
	}
	st := &ndjsonStream{enc: json.NewEncoder(out), flush: flush}
	res, err := h.svc.Install(ctx, req.ModelName, func(p manager.Progress) {
		st.send(types.InstallStreamLine{Type: "progress", Progress: p})
	})
	if err != nil {
		status, code := statusAndCode(err)
		recordFailure(status, code)
		st.send(types.InstallStreamLine{Type: "error", Error: err.Error(), Code: code})
		return
	}
	st.send(types.InstallStreamLine{Type: "result", Data: res})
}

// ndjsonStream serialises concurrent progress callbacks onto one response.
type ndjsonStream struct {
	mu     sync.Mutex
	enc    *json.Encoder
	flush  func()
	broken bool
}

func (s *ndjsonStream) send(line types.InstallStreamLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	if err := s.enc.Encode(line); err != nil {
		s.broken = true
		return
	}
	s.flush()
}

// process godoc
//
//	@Summary	Run a text or vision prompt
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.ProcessRequest	true	"prompt"
//	@Success	200		{object}	types.Envelope{data=manager.InferenceResult}
//	@Failure	400		{object}	types.Envelope
//	@Failure	404		{object}	types.Envelope
//	@Failure	502		{object}	types.Envelope
//	@Failure	503		{object}	types.Envelope
//	@Failure	504		{object}	types.Envelope
//	@Router		/local/process [post]
func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	var req types.ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelName) == "" {
		writeFailure(w, http.StatusBadRequest, "modelName is required")
		return
	}
	opts := samplingFromRequest(req.Options)

	ctx, cancel := requestContext(r)
	defer cancel()

	var (
		res *manager.InferenceResult
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "", "text":
		res, err = h.svc.RunText(ctx, req.ModelName, req.Prompt, opts)
	case "vision", "image":
		res, err = h.svc.RunVision(ctx, req.ModelName, req.Prompt, req.ImageData, opts)
	default:
		writeFailure(w, http.StatusBadRequest, "type must be text or vision")
		return
	}
	if err != nil {
		if shuttingDown(ctx) {
			writeFailure(w, http.StatusServiceUnavailable, errShuttingDown.Error())
			return
		}
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	writeData(w, res)
}

func samplingFromRequest(o *types.ProcessOptions) manager.SamplingOptions {
	if o == nil {
		return manager.SamplingOptions{}
	}
	return manager.SamplingOptions{
		Temperature:   o.Temperature,
		TopP:          o.TopP,
		TopK:          o.TopK,
		RepeatPenalty: o.RepeatPenalty,
		MaxTokens:     o.MaxTokens,
	}
}

// decodeJSON enforces the content type and body limit and decodes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeFailure(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func modelParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "name")
	name, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(name) == "" {
		writeFailure(w, http.StatusBadRequest, "invalid model name")
		return "", false
	}
	return name, true
}

func wantsStream(r *http.Request) bool {
	switch r.URL.Query().Get("stream") {
	case "1", "true", "yes":
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/x-ndjson")
}
