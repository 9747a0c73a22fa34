// Package ollamatest provides an in-memory runtime that speaks the subset of
// the model-serving HTTP API the daemon consumes.
package ollamatest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Model is one installed entry.
type Model struct {
	Name       string
	Size       int64
	Digest     string
	ModifiedAt time.Time
	Family     string
}

// GenerateRequest is what the fake saw on /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  *bool          `json:"stream,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateReply scripts a /api/generate answer.
type GenerateReply struct {
	Response      string
	EvalCount     int
	TotalDuration time.Duration
	// Status other than 0/200 is returned with Error as the body message.
	Status int
	Error  string
	Delay  time.Duration
	// OmitMetrics drops eval_count and total_duration from the reply.
	OmitMetrics bool
}

// Server is a stateful fake runtime.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	models   map[string]Model
	hits     map[string]int
	lastGen  *GenerateRequest
	Generate func(GenerateRequest) GenerateReply
}

// NewServer starts a fake runtime. Close it with t.Cleanup(s.Close).
func NewServer(models ...string) *Server {
	s := &Server{models: map[string]Model{}, hits: map[string]int{}}
	for _, m := range models {
		s.AddModel(m, 1<<30)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/show", s.handleShow)
	mux.HandleFunc("/api/delete", s.handleDelete)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		s.hit(r)
		writeJSON(w, http.StatusOK, map[string]string{"version": "0.5.12"})
	})
	s.Server = httptest.NewServer(mux)
	return s
}

func key(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}

// AddModel installs name with the given size.
func (s *Server) AddModel(name string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(name)
	s.models[k] = Model{Name: k, Size: size, Digest: "sha256:" + strings.Repeat("ab", 8), ModifiedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Family: "llama"}
}

// RemoveModel uninstalls name.
func (s *Server) RemoveModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, key(name))
}

// HasModel reports whether name is installed.
func (s *Server) HasModel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.models[key(name)]
	return ok
}

// Hits returns how many requests hit path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits counts every request served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// LastGenerate returns the most recent generate request, if any.
func (s *Server) LastGenerate() *GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastGen == nil {
		return nil
	}
	cp := *s.lastGen
	return &cp
}

func (s *Server) hit(r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	s.hit(r)
	s.mu.Lock()
	list := make([]map[string]any, 0, len(s.models))
	for _, m := range s.models {
		list = append(list, map[string]any{
			"name":        m.Name,
			"model":       m.Name,
			"size":        m.Size,
			"digest":      m.Digest,
			"modified_at": m.ModifiedAt.Format(time.RFC3339),
			"details":     map[string]any{"family": m.Family, "format": "gguf", "parameter_size": "7B", "quantization_level": "Q4_0"},
		})
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i]["name"].(string) < list[j]["name"].(string) })
	writeJSON(w, http.StatusOK, map[string]any{"models": list})
}

type nameBody struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

func (b nameBody) target() string {
	if b.Model != "" {
		return b.Model
	}
	return b.Name
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	s.hit(r)
	var body nameBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	if !s.HasModel(body.target()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "model '" + body.target() + "' not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modelfile":  "FROM " + body.target(),
		"parameters": "temperature 0.3",
		"template":   "{{ .Prompt }}",
		"system":     "You are a medical assistant.",
		"details":    map[string]any{"family": "llama", "format": "gguf", "parameter_size": "7B", "quantization_level": "Q4_0"},
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.hit(r)
	var body nameBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	if !s.HasModel(body.target()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "model '" + body.target() + "' not found"})
		return
	}
	s.RemoveModel(body.target())
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.hit(r)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, img := range req.Images {
		if _, err := base64.StdEncoding.DecodeString(img); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image data"})
			return
		}
	}
	s.mu.Lock()
	cp := req
	s.lastGen = &cp
	gen := s.Generate
	s.mu.Unlock()
	if !s.HasModel(req.Model) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "model '" + req.Model + "' not found, try pulling it first"})
		return
	}
	reply := GenerateReply{Response: "Assessment: " + req.Prompt, EvalCount: 12, TotalDuration: 1500 * time.Millisecond}
	if gen != nil {
		reply = gen(req)
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if reply.Status != 0 && reply.Status != http.StatusOK {
		writeJSON(w, reply.Status, map[string]string{"error": reply.Error})
		return
	}
	out := map[string]any{
		"model":       req.Model,
		"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		"response":    reply.Response,
		"done":        true,
		"done_reason": "stop",
	}
	if !reply.OmitMetrics {
		out["eval_count"] = reply.EvalCount
		out["total_duration"] = reply.TotalDuration.Nanoseconds()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
