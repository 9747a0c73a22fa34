package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"medmodeld/internal/catalog"
	"medmodeld/internal/manager"
	"medmodeld/internal/ollama"
	"medmodeld/internal/providers"
	"medmodeld/pkg/types"
)

type mockService struct {
	mu        sync.Mutex
	ready     bool
	status    manager.RuntimeStatus
	entries   []manager.CatalogEntry
	installed []ollama.InstalledModel
	syncErr   error
	info      *manager.ModelInfo
	infoErr   error
	installFn func(ctx context.Context, name string, onProgress manager.ProgressFunc) (*manager.InstallResult, error)
	removeErr error
	removed   []string
	runErr    error
	runTextFn func(ctx context.Context, name, prompt string, opts manager.SamplingOptions) (*manager.InferenceResult, error)
	lastKind  string
	lastOpts  manager.SamplingOptions
	lastImage string
	startErr  error
	starts    int
}

func (m *mockService) Status(ctx context.Context) manager.RuntimeStatus { return m.status }
func (m *mockService) ListModels() []manager.CatalogEntry              { return m.entries }
func (m *mockService) Sync(ctx context.Context) error                  { return m.syncErr }
func (m *mockService) Installed() []ollama.InstalledModel              { return m.installed }
func (m *mockService) Ready(ctx context.Context) bool                  { return m.ready }

func (m *mockService) GetInfo(ctx context.Context, name string) (*manager.ModelInfo, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	return m.info, nil
}

func (m *mockService) Install(ctx context.Context, name string, onProgress manager.ProgressFunc) (*manager.InstallResult, error) {
	if m.installFn != nil {
		return m.installFn(ctx, name, onProgress)
	}
	return &manager.InstallResult{OperationID: "op-1", Model: name}, nil
}

func (m *mockService) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, name)
	return nil
}

func (m *mockService) RunText(ctx context.Context, name, prompt string, opts manager.SamplingOptions) (*manager.InferenceResult, error) {
	m.lastKind, m.lastOpts = "text", opts
	if m.runTextFn != nil {
		return m.runTextFn(ctx, name, prompt, opts)
	}
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &manager.InferenceResult{ModelName: name, OutputText: "ok: " + prompt, TokenCount: 3, Succeeded: true}, nil
}

func (m *mockService) RunVision(ctx context.Context, name, prompt, image string, opts manager.SamplingOptions) (*manager.InferenceResult, error) {
	m.lastKind, m.lastOpts, m.lastImage = "vision", opts, image
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &manager.InferenceResult{ModelName: name, OutputText: "image ok", Succeeded: true}, nil
}

func (m *mockService) StartRuntime(ctx context.Context) (*manager.StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &manager.StartResult{Endpoint: "http://127.0.0.1:11434", Started: true}, nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (types.Envelope, json.RawMessage) {
	t.Helper()
	var raw struct {
		types.Envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("json: %v body=%q", err, w.Body.String())
	}
	return raw.Envelope, raw.Data
}

func TestHealthz(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestReadyz(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{ready: true}), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	w = doJSON(t, NewMux(&mockService{ready: false}), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "unavailable") {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: manager.RuntimeStatus{Reachable: true, Endpoint: "http://rt", InstalledCount: 1, Installed: []string{"llama2-medical"}}}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/local/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	env, data := decodeEnvelope(t, w)
	if !env.Success {
		t.Fatalf("envelope: %+v", env)
	}
	var st manager.RuntimeStatus
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Reachable || st.InstalledCount != 1 || st.Endpoint != "http://rt" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{entries: []manager.CatalogEntry{
		{Descriptor: catalog.Descriptor{Name: "llama2-medical", Kind: catalog.KindText}, Installed: true},
		{Descriptor: catalog.Descriptor{Name: "llava-medical", Kind: catalog.KindMultimodal}},
	}}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/local/models", "")
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	_, data := decodeEnvelope(t, w)
	var got []manager.CatalogEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Installed || got[1].Installed {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestInstalledHandler_SyncFailure(t *testing.T) {
	svc := &mockService{syncErr: manager.ErrRuntimeUnavailable("http://rt")}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/local/installed", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	env, _ := decodeEnvelope(t, w)
	if env.Success || env.Code != "runtime_unavailable" {
		t.Fatalf("envelope: %+v", env)
	}

	svc = &mockService{installed: []ollama.InstalledModel{{Name: "mistral-medical", SizeBytes: 10}}}
	w = doJSON(t, NewMux(svc), http.MethodGet, "/local/installed", "")
	_, data := decodeEnvelope(t, w)
	var got []ollama.InstalledModel
	_ = json.Unmarshal(data, &got)
	if w.Code != http.StatusOK || len(got) != 1 || got[0].Name != "mistral-medical" {
		t.Fatalf("status=%d got=%+v", w.Code, got)
	}
}

func TestInfoHandler(t *testing.T) {
	svc := &mockService{info: &manager.ModelInfo{Record: ollama.InstalledModel{Name: "llava-medical"}}}
	w := doJSON(t, NewMux(svc), http.MethodGet, "/local/models/llava-medical", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	svc = &mockService{infoErr: manager.ErrNotInstalled("ghost")}
	w = doJSON(t, NewMux(svc), http.MethodGet, "/local/models/ghost", "")
	env, _ := decodeEnvelope(t, w)
	if w.Code != http.StatusNotFound || env.Code != "not_installed" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestRemoveHandler(t *testing.T) {
	svc := &mockService{}
	w := doJSON(t, NewMux(svc), http.MethodDelete, "/local/models/mistral-medical", "")
	if w.Code != http.StatusOK || len(svc.removed) != 1 || svc.removed[0] != "mistral-medical" {
		t.Fatalf("status=%d removed=%v", w.Code, svc.removed)
	}

	svc = &mockService{removeErr: manager.ErrInstallInProgress("mistral-medical", "install")}
	w = doJSON(t, NewMux(svc), http.MethodDelete, "/local/models/mistral-medical", "")
	env, _ := decodeEnvelope(t, w)
	if w.Code != http.StatusConflict || env.Code != "install_in_progress" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestStartHandler(t *testing.T) {
	svc := &mockService{}
	w := doJSON(t, NewMux(svc), http.MethodPost, "/local/start", "")
	env, data := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || !env.Success || svc.starts != 1 {
		t.Fatalf("status=%d env=%+v starts=%d", w.Code, env, svc.starts)
	}
	var res manager.StartResult
	if err := json.Unmarshal(data, &res); err != nil || !res.Started {
		t.Fatalf("data=%s err=%v", data, err)
	}

	svc = &mockService{startErr: manager.ErrRuntimeStartFailed("ollama not found")}
	w = doJSON(t, NewMux(svc), http.MethodPost, "/local/start", "")
	env, _ = decodeEnvelope(t, w)
	if w.Code != http.StatusBadGateway || env.Code != "runtime_start_failed" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestInstallHandler_Validation(t *testing.T) {
	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/local/install", strings.NewReader(`{"modelName":"x"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/local/install", `{bad`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/local/install", `{"modelName":"  "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("blank name: status=%d", w.Code)
	}
}

func TestInstallHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{manager.ErrUnknownModel("gpt-9"), http.StatusNotFound, "unknown_model"},
		{manager.ErrAlreadyInstalled("llama2-medical"), http.StatusConflict, "already_installed"},
		{manager.ErrInstallInProgress("llama2-medical", "install"), http.StatusConflict, "install_in_progress"},
		{manager.ErrInstallFailed(manager.PhasePull, "network down", 1), http.StatusBadGateway, "install_failed"},
		{manager.ErrRuntimeUnavailable("http://rt"), http.StatusServiceUnavailable, "runtime_unavailable"},
		{mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot, "internal_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		err := tc.err
		svc := &mockService{installFn: func(context.Context, string, manager.ProgressFunc) (*manager.InstallResult, error) {
			return nil, err
		}}
		w := doJSON(t, NewMux(svc), http.MethodPost, "/local/install", `{"modelName":"llama2-medical"}`)
		env, _ := decodeEnvelope(t, w)
		if w.Code != tc.status || env.Code != tc.code || env.Success || env.Error == "" {
			t.Fatalf("%v: status=%d env=%+v", tc.err, w.Code, env)
		}
	}
}

func TestInstallHandler_Stream(t *testing.T) {
	svc := &mockService{installFn: func(ctx context.Context, name string, onProgress manager.ProgressFunc) (*manager.InstallResult, error) {
		var wg sync.WaitGroup
		for _, stream := range []string{"stdout", "stderr"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					onProgress(manager.Progress{Model: name, Phase: manager.PhasePull, Stream: stream, Line: "line", Time: time.Now()})
				}
			}()
		}
		wg.Wait()
		return &manager.InstallResult{OperationID: "op-9", Model: name}, nil
	}}
	w := doJSON(t, NewMux(svc), http.MethodPost, "/local/install?stream=1", `{"modelName":"llava-medical"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%q", ct)
	}
	var progress, results int
	sc := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	var last types.InstallStreamLine
	for sc.Scan() {
		var line types.InstallStreamLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		switch line.Type {
		case "progress":
			progress++
		case "result":
			results++
		}
		last = line
	}
	if progress != 10 || results != 1 || last.Type != "result" {
		t.Fatalf("progress=%d results=%d last=%+v", progress, results, last)
	}
}

func TestInstallHandler_StreamError(t *testing.T) {
	svc := &mockService{installFn: func(context.Context, string, manager.ProgressFunc) (*manager.InstallResult, error) {
		return nil, manager.ErrInstallFailed(manager.PhaseCreate, "bad modelfile", 1)
	}}
	w := doJSON(t, NewMux(svc), http.MethodPost, "/local/install?stream=1", `{"modelName":"llava-medical"}`)
	var line types.InstallStreamLine
	if err := json.Unmarshal(bytes.TrimSpace(w.Body.Bytes()), &line); err != nil {
		t.Fatalf("json: %v", err)
	}
	if line.Type != "error" || line.Code != "install_failed" || !strings.Contains(line.Error, "bad modelfile") {
		t.Fatalf("line=%+v", line)
	}
}

func TestProcessHandler_TextAndVision(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	w := doJSON(t, h, http.MethodPost, "/local/process", `{"modelName":"mistral-medical","prompt":"BP 150/95","options":{"temperature":0.7,"max_tokens":64}}`)
	if w.Code != http.StatusOK || svc.lastKind != "text" {
		t.Fatalf("status=%d kind=%s", w.Code, svc.lastKind)
	}
	if svc.lastOpts.Temperature == nil || *svc.lastOpts.Temperature != 0.7 || svc.lastOpts.MaxTokens == nil || *svc.lastOpts.MaxTokens != 64 || svc.lastOpts.TopK != nil {
		t.Fatalf("options not forwarded: %+v", svc.lastOpts)
	}
	_, data := decodeEnvelope(t, w)
	var res manager.InferenceResult
	_ = json.Unmarshal(data, &res)
	if !res.Succeeded || res.OutputText != "ok: BP 150/95" {
		t.Fatalf("result=%+v", res)
	}

	w = doJSON(t, h, http.MethodPost, "/local/process", `{"modelName":"llava-medical","prompt":"describe","type":"vision","imageData":"aGk="}`)
	if w.Code != http.StatusOK || svc.lastKind != "vision" || svc.lastImage != "aGk=" {
		t.Fatalf("status=%d kind=%s image=%q", w.Code, svc.lastKind, svc.lastImage)
	}

	if w := doJSON(t, h, http.MethodPost, "/local/process", `{"modelName":"m","prompt":"p","type":"audio"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: status=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/local/process", `{"prompt":"p"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing model: status=%d", w.Code)
	}
}

func TestProcessHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{manager.ErrModelNotInstalled("mistral-medical"), http.StatusNotFound, "model_not_installed"},
		{manager.ErrUnsupportedModelKind("mistral-medical", "text"), http.StatusBadRequest, "unsupported_model_kind"},
		{manager.ErrInferenceFailed("bad"), http.StatusBadGateway, "inference_failed"},
		{manager.ErrInferenceTimeout("slow"), http.StatusGatewayTimeout, "inference_timeout"},
		{manager.ErrInvalidInput("empty prompt"), http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		svc := &mockService{runErr: tc.err}
		w := doJSON(t, NewMux(svc), http.MethodPost, "/local/process", `{"modelName":"mistral-medical","prompt":"x"}`)
		env, _ := decodeEnvelope(t, w)
		if w.Code != tc.status || env.Code != tc.code {
			t.Fatalf("%v: status=%d env=%+v", tc.err, w.Code, env)
		}
	}
}

func TestProcessHandler_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(64)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	body := `{"modelName":"llava-medical","prompt":"x","imageData":"` + strings.Repeat("A", 200) + `"}`
	w := doJSON(t, NewMux(&mockService{}), http.MethodPost, "/local/process", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

type providerService struct {
	mockService
	results []providers.Result
}

func (p *providerService) ProbeAll(ctx context.Context) []providers.Result { return p.results }

func TestProvidersRoute(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodGet, "/providers/status", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("route mounted without checker: status=%d", w.Code)
	}

	svc := &providerService{results: []providers.Result{{ID: "openai", Reason: providers.ReasonNoAPIKey}}}
	w = doJSON(t, NewMux(svc), http.MethodGet, "/providers/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	_, data := decodeEnvelope(t, w)
	var got []providers.Result
	_ = json.Unmarshal(data, &got)
	if len(got) != 1 || got[0].Reason != providers.ReasonNoAPIKey {
		t.Fatalf("got=%+v", got)
	}
}

func TestUnknownRouteJSON(t *testing.T) {
	w := doJSON(t, NewMux(&mockService{}), http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != http.StatusNotFound {
		t.Fatalf("body=%q err=%v", w.Body.String(), err)
	}
}
