// Package manager owns the installed-model state of one model runtime and
// the inference path through it. It is structured into small files by concern:
//
//   - manager.go: Manager type, installed-set sync, in-flight slots, getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Runtime/HostCollector interfaces and the values returned to callers.
//   - errors.go: error kinds with IsX predicates, HTTP status and stable codes.
//   - events.go, eventlog.go: lifecycle events, the recent-event ring and install progress observers.
//   - install.go: two-phase install (pull base, create derived) with rollback.
//   - remove.go, info.go: removal and inspection.
//   - status_report.go: RuntimeStatus assembly.
//   - infer.go: text and vision inference.
//   - metrics.go: Prometheus collectors.
//
// Runtime state is never patched: every change is followed by a full resync
// from the runtime's model list.
package manager
