// Package procrun abstracts spawning external management commands so callers
// can be exercised against scripted fakes.
package procrun

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// Process is a started command. Stdout and Stderr must be drained before Wait.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until exit. A non-zero exit is reported via the code with a nil error.
	Wait() (int, error)
}

// Runner starts commands. args[0] is the program.
type Runner interface {
	Start(ctx context.Context, args []string) (Process, error)
}

// Stream identifies which output a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineFunc receives output lines as they are produced.
type LineFunc func(s Stream, line string)

// Exec runs real processes via os/exec.
type Exec struct {
	// WaitDelay bounds how long Wait waits for output pipes after the process exits.
	WaitDelay time.Duration
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() >= 0 {
		return ee.ExitCode(), nil
	}
	return -1, err
}

// Start spawns args[0] with the remaining args. The process is killed when ctx ends.
func (e Exec) Start(ctx context.Context, args []string) (Process, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("procrun: empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if e.WaitDelay > 0 {
		cmd.WaitDelay = e.WaitDelay
	} else {
		cmd.WaitDelay = 2 * time.Second
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Spawner starts long-lived processes detached from the caller: they outlive
// any context and their output is discarded.
type Spawner interface {
	Spawn(args []string) (Process, error)
}

// Spawn starts args as a background process. Runners that are not Spawners get
// a Start with a background context and their output drained in the background.
func Spawn(r Runner, args []string) (Process, error) {
	if sp, ok := r.(Spawner); ok {
		return sp.Spawn(args)
	}
	p, err := r.Start(context.Background(), args)
	if err != nil {
		return nil, err
	}
	for _, out := range []io.Reader{p.Stdout(), p.Stderr()} {
		if out != nil {
			go func(rd io.Reader) { _, _ = io.Copy(io.Discard, rd) }(out)
		}
	}
	return p, nil
}

// Spawn starts args with stdio bound to the null device, so the child never
// depends on our pipes staying open.
func (e Exec) Spawn(args []string) (Process, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("procrun: empty command")
	}
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	return &execProcess{cmd: cmd}, nil
}

// IsNotFound reports whether err means the program does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Run starts args, forwards every output line to onLine (which may be nil)
// and returns the exit code once both streams are drained.
func Run(ctx context.Context, r Runner, args []string, onLine LineFunc) (int, error) {
	p, err := r.Start(ctx, args)
	if err != nil {
		return -1, err
	}
	var g errgroup.Group
	g.Go(func() error { return scan(p.Stdout(), Stdout, onLine) })
	g.Go(func() error { return scan(p.Stderr(), Stderr, onLine) })
	scanErr := g.Wait()
	code, err := p.Wait()
	if err != nil {
		return code, err
	}
	if scanErr != nil && ctx.Err() == nil {
		return code, scanErr
	}
	return code, nil
}

func scan(r io.Reader, s Stream, onLine LineFunc) error {
	if r == nil {
		return nil
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanLinesCR)
	for sc.Scan() {
		line := string(bytes.TrimSpace(sc.Bytes()))
		if line == "" || onLine == nil {
			continue
		}
		onLine(s, line)
	}
	err := sc.Err()
	if err == nil {
		return nil
	}
	// Keep the pipe empty so the child never blocks on a write.
	_, _ = io.Copy(io.Discard, r)
	// Pipe closed under us after a kill; not worth surfacing.
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

// scanLinesCR splits on '\n' and '\r' so redrawn progress bars yield one line per update.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
