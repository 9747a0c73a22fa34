package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medmodeld/internal/manager"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: nil exercises the fallback
	SetBaseContext(nil)
	if baseContext().Err() != nil {
		t.Fatalf("base context not reset")
	}
}

func TestJoinContexts_BaseCancelIsShutdown(t *testing.T) {
	base, stopBase := context.WithCancel(context.Background())
	j, cancel := joinContexts(context.Background(), base)
	defer cancel()
	stopBase()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel with base")
	}
	if !shuttingDown(j) {
		t.Fatalf("cause = %v, want shutdown", context.Cause(j))
	}
}

func TestJoinContexts_RequestCancelIsNotShutdown(t *testing.T) {
	req, stopReq := context.WithCancel(context.Background())
	j, cancel := joinContexts(req, context.Background())
	defer cancel()
	stopReq()
	<-j.Done()
	if shuttingDown(j) {
		t.Fatal("client cancellation reported as shutdown")
	}
}

func TestProcess_ShutdownReturns503(t *testing.T) {
	base, stopBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(nil) })
	svc := &mockService{runTextFn: func(ctx context.Context, _, _ string, _ manager.SamplingOptions) (*manager.InferenceResult, error) {
		stopBase()
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	req := httptest.NewRequest(http.MethodPost, "/local/process", strings.NewReader(`{"modelName":"llama2-medical","prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInstall_IgnoresClientCancellation(t *testing.T) {
	var ctxErr error
	svc := &mockService{installFn: func(ctx context.Context, name string, _ manager.ProgressFunc) (*manager.InstallResult, error) {
		ctxErr = ctx.Err()
		return &manager.InstallResult{Model: name}, nil
	}}
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/local/install", strings.NewReader(`{"modelName":"llama2-medical"}`)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	NewMux(svc).ServeHTTP(httptest.NewRecorder(), req)
	if ctxErr != nil {
		t.Fatalf("install saw request cancellation: %v", ctxErr)
	}
}
