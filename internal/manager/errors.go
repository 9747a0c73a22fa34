package manager

import (
	"errors"
	"fmt"
	"net/http"
)

// Every error the manager returns carries an HTTP status and a stable code so
// the facade can map it without knowing the concrete type.

// runtimeUnavailableError means the runtime did not answer; retry later.
type runtimeUnavailableError struct{ endpoint string }

func (e runtimeUnavailableError) Error() string {
	if e.endpoint == "" {
		return "model runtime unavailable"
	}
	return "model runtime unavailable at " + e.endpoint
}
func (runtimeUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }
func (runtimeUnavailableError) Code() string    { return "runtime_unavailable" }

// ErrRuntimeUnavailable constructs a runtimeUnavailableError.
func ErrRuntimeUnavailable(endpoint string) error { return runtimeUnavailableError{endpoint: endpoint} }

// IsRuntimeUnavailable reports whether the runtime could not be reached.
func IsRuntimeUnavailable(err error) bool {
	var e runtimeUnavailableError
	return errors.As(err, &e)
}

type unknownModelError struct{ name string }

func (e unknownModelError) Error() string { return "unknown model: " + e.name }
func (unknownModelError) StatusCode() int { return http.StatusNotFound }
func (unknownModelError) Code() string    { return "unknown_model" }

// ErrUnknownModel returns an error for a name missing from the catalog.
func ErrUnknownModel(name string) error { return unknownModelError{name: name} }

// IsUnknownModel reports whether err indicates an uncataloged name.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

// notInstalledError covers both lifecycle (remove/info) and inference lookups;
// inference marks itself so the code tells the UI to offer an install.
type notInstalledError struct {
	name      string
	inference bool
}

func (e notInstalledError) Error() string { return "model not installed: " + e.name }
func (notInstalledError) StatusCode() int { return http.StatusNotFound }
func (e notInstalledError) Code() string {
	if e.inference {
		return "model_not_installed"
	}
	return "not_installed"
}

// ErrNotInstalled is returned by remove/info when no record exists.
func ErrNotInstalled(name string) error { return notInstalledError{name: name} }

// ErrModelNotInstalled is returned by inference when the model is absent.
func ErrModelNotInstalled(name string) error { return notInstalledError{name: name, inference: true} }

// IsNotInstalled reports whether err indicates a missing installed record.
func IsNotInstalled(err error) bool {
	var e notInstalledError
	return errors.As(err, &e)
}

// IsModelNotInstalled is IsNotInstalled restricted to inference lookups.
func IsModelNotInstalled(err error) bool {
	var e notInstalledError
	return errors.As(err, &e) && e.inference
}

type alreadyInstalledError struct{ name string }

func (e alreadyInstalledError) Error() string { return "model already installed: " + e.name }
func (alreadyInstalledError) StatusCode() int { return http.StatusConflict }
func (alreadyInstalledError) Code() string    { return "already_installed" }

// ErrAlreadyInstalled constructs an alreadyInstalledError.
func ErrAlreadyInstalled(name string) error { return alreadyInstalledError{name: name} }

// IsAlreadyInstalled reports whether err indicates the model is already present.
func IsAlreadyInstalled(err error) bool {
	var e alreadyInstalledError
	return errors.As(err, &e)
}

// installInProgressError rejects a lifecycle call while another one for the
// same name is running. op is the running operation.
type installInProgressError struct {
	name string
	op   string
}

func (e installInProgressError) Error() string {
	return fmt.Sprintf("%s in progress for model %s", e.op, e.name)
}
func (installInProgressError) StatusCode() int { return http.StatusConflict }
func (installInProgressError) Code() string    { return "install_in_progress" }

// ErrInstallInProgress constructs an installInProgressError.
func ErrInstallInProgress(name, op string) error { return installInProgressError{name: name, op: op} }

// IsInstallInProgress reports whether err is an in-flight conflict.
func IsInstallInProgress(err error) bool {
	var e installInProgressError
	return errors.As(err, &e)
}

// Install phases reported by InstallFailed.
const (
	PhasePull   = "pull"
	PhaseCreate = "create"
	PhaseVerify = "verify"
)

// InstallFailedError is exported so callers can read the failing phase.
type InstallFailedError struct {
	Phase    string
	Message  string
	ExitCode int
}

func (e *InstallFailedError) Error() string {
	return fmt.Sprintf("install failed during %s: %s", e.Phase, e.Message)
}
func (*InstallFailedError) StatusCode() int { return http.StatusBadGateway }
func (*InstallFailedError) Code() string    { return "install_failed" }

// ErrInstallFailed constructs an InstallFailedError.
func ErrInstallFailed(phase, msg string, exitCode int) error {
	return &InstallFailedError{Phase: phase, Message: msg, ExitCode: exitCode}
}

// InstallFailedPhase returns the failing phase and true when err is an install failure.
func InstallFailedPhase(err error) (string, bool) {
	var e *InstallFailedError
	if errors.As(err, &e) {
		return e.Phase, true
	}
	return "", false
}

// IsInstallFailed reports whether err is an install failure.
func IsInstallFailed(err error) bool {
	_, ok := InstallFailedPhase(err)
	return ok
}

type inferenceFailedError struct {
	msg      string
	timedOut bool
}

func (e inferenceFailedError) Error() string {
	if e.timedOut {
		return "inference timed out: " + e.msg
	}
	return "inference failed: " + e.msg
}

func (e inferenceFailedError) StatusCode() int {
	if e.timedOut {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (e inferenceFailedError) Code() string {
	if e.timedOut {
		return "inference_timeout"
	}
	return "inference_failed"
}

// ErrInferenceFailed constructs a runtime-side inference failure.
func ErrInferenceFailed(msg string) error { return inferenceFailedError{msg: msg} }

// ErrInferenceTimeout constructs an inference failure caused by the deadline.
func ErrInferenceTimeout(msg string) error { return inferenceFailedError{msg: msg, timedOut: true} }

// IsInferenceFailed reports whether err is an inference failure (timeouts included).
func IsInferenceFailed(err error) bool {
	var e inferenceFailedError
	return errors.As(err, &e)
}

// IsInferenceTimeout reports whether err is an inference deadline expiry.
func IsInferenceTimeout(err error) bool {
	var e inferenceFailedError
	return errors.As(err, &e) && e.timedOut
}

type unsupportedKindError struct {
	name string
	kind string
}

func (e unsupportedKindError) Error() string {
	return fmt.Sprintf("model %s (%s) does not accept images", e.name, e.kind)
}
func (unsupportedKindError) StatusCode() int { return http.StatusBadRequest }
func (unsupportedKindError) Code() string    { return "unsupported_model_kind" }

// ErrUnsupportedModelKind constructs an unsupportedKindError.
func ErrUnsupportedModelKind(name, kind string) error {
	return unsupportedKindError{name: name, kind: kind}
}

// IsUnsupportedModelKind reports whether err rejects the model type for the operation.
func IsUnsupportedModelKind(err error) bool {
	var e unsupportedKindError
	return errors.As(err, &e)
}

type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid input: " + e.msg }
func (invalidInputError) StatusCode() int { return http.StatusBadRequest }
func (invalidInputError) Code() string    { return "invalid_input" }

// ErrInvalidInput constructs an invalidInputError.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err rejects caller-supplied data.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// runtimeError wraps an unexpected runtime answer on show/delete.
type runtimeError struct {
	op  string
	err error
}

func (e runtimeError) Error() string { return fmt.Sprintf("runtime %s: %v", e.op, e.err) }
func (e runtimeError) Unwrap() error { return e.err }
func (runtimeError) StatusCode() int { return http.StatusBadGateway }
func (runtimeError) Code() string    { return "runtime_error" }

// IsRuntimeError reports whether err is an unexpected runtime failure.
func IsRuntimeError(err error) bool {
	var e runtimeError
	return errors.As(err, &e)
}

// runtimeStartError reports that StartRuntime could not bring the runtime up.
type runtimeStartError struct{ reason string }

func (e runtimeStartError) Error() string { return "runtime start failed: " + e.reason }
func (runtimeStartError) StatusCode() int { return http.StatusBadGateway }
func (runtimeStartError) Code() string    { return "runtime_start_failed" }

// ErrRuntimeStartFailed constructs a runtimeStartError.
func ErrRuntimeStartFailed(reason string) error { return runtimeStartError{reason: reason} }

// IsRuntimeStartFailed reports whether err is a failed runtime start.
func IsRuntimeStartFailed(err error) bool {
	var e runtimeStartError
	return errors.As(err, &e)
}
