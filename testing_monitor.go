package wsupervisor

// mockMonitor is a func-field Monitor double: a test drives reachability
// edges by calling Fire directly once the Supervisor has started it.
type mockMonitor struct {
	onChange func(Reachability)
	StopFunc func()
	startErr error
}

func (m *mockMonitor) Start(onChange func(Reachability)) error {
	m.onChange = onChange
	return m.startErr
}

func (m *mockMonitor) Stop() {
	if m.StopFunc != nil {
		m.StopFunc()
	}
}

// Fire delivers a reachability edge as if the platform had reported it.
func (m *mockMonitor) Fire(state Reachability) {
	if m.onChange != nil {
		m.onChange(state)
	}
}
