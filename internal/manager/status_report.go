package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status probes the runtime and the host concurrently. Nothing is cached
// beyond the installed set, which a reachable runtime resyncs.
func (m *Manager) Status(ctx context.Context) RuntimeStatus {
	st := RuntimeStatus{Endpoint: m.rt.Endpoint(), CheckedAt: time.Now().UTC()}
	var g errgroup.Group
	g.Go(func() error {
		st.HostInfo = m.host.Collect(ctx)
		return nil
	})
	g.Go(func() error {
		if !m.rt.CheckReachable(ctx) {
			setRuntimeReachable(false)
			return nil
		}
		st.Reachable = true
		if v, err := m.rt.Version(ctx); err == nil {
			st.Version = v
		}
		if err := m.Sync(ctx); err != nil {
			m.log.Warn().Err(err).Msg("status sync")
		}
		return nil
	})
	_ = g.Wait()

	st.Installed = []string{}
	if st.Reachable {
		for _, r := range m.Installed() {
			st.Installed = append(st.Installed, r.Name)
		}
	}
	st.InstalledCount = len(st.Installed)
	st.RecentEvents = m.journal.Events()
	return st
}
