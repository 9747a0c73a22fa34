package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medmodeld/internal/catalog"
	"medmodeld/internal/common/fsutil"
	"medmodeld/internal/procrun"
)

// stderrTail is how many trailing stderr lines an InstallFailed message keeps.
const stderrTail = 5

// Install pulls the descriptor's base model and derives the healthcare
// variant from its rendered modelfile. At most one lifecycle operation runs
// per name; a failed install leaves no record behind. onProgress may be nil.
func (m *Manager) Install(ctx context.Context, name string, onProgress ProgressFunc) (*InstallResult, error) {
	desc, err := m.catalog.Get(name)
	if err != nil {
		installsTotal.WithLabelValues("unknown_model").Inc()
		return nil, ErrUnknownModel(name)
	}
	name = desc.Name
	if err := m.claim(name, opInstall); err != nil {
		installsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	defer m.release(name)

	opID := uuid.NewString()
	log := m.log.With().Str("model", name).Str("op_id", opID).Logger()
	emit := func(phase string, stream procrun.Stream, line string) {
		if onProgress == nil {
			return
		}
		onProgress(Progress{OperationID: opID, Model: name, Phase: phase, Stream: string(stream), Line: line, Time: time.Now()})
	}

	start := time.Now()
	res, err := m.install(ctx, desc, opID, log, emit)
	installsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		fields := map[string]any{"op_id": opID, "error": err.Error()}
		if phase, ok := InstallFailedPhase(err); ok {
			fields["phase"] = phase
		}
		log.Warn().Err(err).Dur("dur", time.Since(start)).Msg("install failed")
		m.publish(Event{Name: EventInstallFailed, Model: name, Fields: fields})
		return nil, err
	}
	res.Duration = time.Since(start)
	log.Info().Dur("dur", res.Duration).Int64("size_bytes", res.Record.SizeBytes).Msg("install done")
	m.publish(Event{Name: EventInstallDone, Model: name, Fields: map[string]any{"op_id": opID, "duration_ms": res.Duration.Milliseconds()}})
	return res, nil
}

type emitFunc func(phase string, stream procrun.Stream, line string)

func (m *Manager) install(ctx context.Context, desc catalog.Descriptor, opID string, log zerolog.Logger, emit emitFunc) (*InstallResult, error) {
	name := desc.Name
	if !m.rt.CheckReachable(ctx) {
		setRuntimeReachable(false)
		return nil, ErrRuntimeUnavailable(m.rt.Endpoint())
	}
	if err := m.Sync(ctx); err != nil {
		return nil, err
	}
	if _, ok := m.record(name); ok {
		return nil, ErrAlreadyInstalled(name)
	}

	log.Info().Str("base", desc.BaseModel).Msg("install start")
	m.publish(Event{Name: EventInstallStart, Model: name, Fields: map[string]any{"op_id": opID, "base": desc.BaseModel}})

	emit(PhasePull, "", "pulling base model "+desc.BaseModel)
	if err := m.runPhase(ctx, name, PhasePull, m.pullTimeout, []string{m.ollamaBin, "pull", desc.BaseModel}, log, emit); err != nil {
		return nil, err
	}

	path, err := m.writeModelfile(desc)
	if err != nil {
		return nil, ErrInstallFailed(PhaseCreate, err.Error(), -1)
	}
	emit(PhaseCreate, "", "creating "+name+" from "+filepath.Base(path))
	if err := m.runPhase(ctx, name, PhaseCreate, m.createTimeout, []string{m.ollamaBin, "create", name, "-f", path}, log, emit); err != nil {
		m.rollback(ctx, name, log)
		return nil, err
	}

	emit(PhaseVerify, "", "verifying "+name)
	if err := m.Sync(ctx); err != nil {
		m.rollback(ctx, name, log)
		return nil, ErrInstallFailed(PhaseVerify, err.Error(), 0)
	}
	rec, ok := m.record(name)
	if !ok {
		m.rollback(ctx, name, log)
		return nil, ErrInstallFailed(PhaseVerify, "runtime does not list the model after create", 0)
	}
	return &InstallResult{OperationID: opID, Model: name, Record: rec}, nil
}

// runPhase runs one management command, forwarding its output as progress.
func (m *Manager) runPhase(ctx context.Context, name, phase string, timeout time.Duration, args []string, log zerolog.Logger, emit emitFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	m.publish(Event{Name: EventInstallPhase, Model: name, Fields: map[string]any{"phase": phase}})

	var tail []string
	start := time.Now()
	code, err := procrun.Run(ctx, m.runner, args, func(s procrun.Stream, line string) {
		if s == procrun.Stderr {
			tail = append(tail, line)
			if len(tail) > stderrTail {
				tail = tail[1:]
			}
		}
		log.Debug().Str("phase", phase).Str("stream", string(s)).Msg(line)
		emit(phase, s, line)
	})
	result := "ok"
	defer func() {
		installPhaseDuration.WithLabelValues(phase, result).Observe(time.Since(start).Seconds())
	}()

	switch {
	case err != nil && procrun.IsNotFound(err):
		result = "error"
		return ErrInstallFailed(phase, fmt.Sprintf("%s not found on PATH", args[0]), -1)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result = "timeout"
		return ErrInstallFailed(phase, fmt.Sprintf("timed out after %s", timeout), code)
	case ctx.Err() != nil:
		result = "canceled"
		return ErrInstallFailed(phase, "canceled", code)
	case err != nil:
		result = "error"
		return ErrInstallFailed(phase, err.Error(), code)
	case code != 0:
		result = "error"
		msg := strings.Join(tail, "; ")
		if msg == "" {
			msg = fmt.Sprintf("exit status %d", code)
		}
		return ErrInstallFailed(phase, msg, code)
	}
	return nil
}

func (m *Manager) writeModelfile(desc catalog.Descriptor) (string, error) {
	path, err := fsutil.WriteInDir(m.workDir, desc.Name+".modelfile", []byte(catalog.RenderModelfile(desc)))
	if err != nil {
		return "", fmt.Errorf("modelfile: %w", err)
	}
	return path, nil
}

// rollback drops a derived model that may have been partially created, then
// resyncs so the installed set matches the runtime.
func (m *Manager) rollback(ctx context.Context, name string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.rt.Delete(ctx, name); err != nil {
		log.Debug().Err(err).Msg("rollback delete")
	}
	if err := m.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("rollback sync")
	}
}
