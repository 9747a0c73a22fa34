package procrun

import (
	"context"
	"io"
	"strings"
	"sync"
)

// FakeResult scripts one fake invocation.
type FakeResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is returned from Start, e.g. an exec.ErrNotFound wrapper.
	Err error
}

// Fake is a scripted Runner for tests. Handler decides the outcome per call;
// a nil Handler exits 0 with no output.
type Fake struct {
	Handler func(args []string) FakeResult
	// Gate, when set, holds every Wait until it is closed or the context ends.
	Gate chan struct{}

	mu    sync.Mutex
	calls [][]string
}

// Calls returns a copy of the argument lists seen so far.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

func (f *Fake) Start(ctx context.Context, args []string) (Process, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	res := FakeResult{}
	if f.Handler != nil {
		res = f.Handler(args)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return &fakeProcess{ctx: ctx, res: res, gate: f.Gate}, nil
}

type fakeProcess struct {
	ctx  context.Context
	res  FakeResult
	gate chan struct{}
}

func (p *fakeProcess) Stdout() io.Reader { return strings.NewReader(p.res.Stdout) }
func (p *fakeProcess) Stderr() io.Reader { return strings.NewReader(p.res.Stderr) }

func (p *fakeProcess) Wait() (int, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-p.ctx.Done():
			return -1, p.ctx.Err()
		}
	}
	return p.res.ExitCode, nil
}
