package wsupervisor

// dispatchJob is the unit of work the dispatcher's serial lane executes.
type dispatchJob func()

// DispatchFunc is a host-supplied serial lane: it must execute fn without
// reordering relative to other calls the host makes to it, and should not
// block indefinitely. The default dispatcher instead runs its own
// single-goroutine worker, per SPEC_FULL.md §5.
type DispatchFunc func(fn func())

// dispatcher marshals on_status/on_message/on_error/on_challenge callbacks
// onto a single serial lane, per spec.md §4.5. Each callback is a single
// host-owned capability (spec.md's model is one attached host per Client,
// not a dynamic pub/sub registry), so it is a plain struct field rather than
// a multi-listener registry. The default serial-goroutine lane is a
// channel-worker loop in the same style as a retry scheduler's run method.
type dispatcher struct {
	onStatus    func(Client, Status, Status)
	onMessage   func(Client, Message)
	onError     func(Client, error)
	onChallenge func(Client, Challenge) ChallengeDisposition

	dispatch DispatchFunc
	jobs     chan dispatchJob
	done     chan struct{}
}

func newDispatcher(dispatch DispatchFunc) *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	if dispatch != nil {
		d.dispatch = dispatch
		return d
	}

	d.jobs = make(chan dispatchJob, 256)
	go d.run()
	d.dispatch = func(fn func()) {
		select {
		case d.jobs <- fn:
		case <-d.done:
		}
	}
	return d
}

func (d *dispatcher) run() {
	for {
		select {
		case job := <-d.jobs:
			job()
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) close() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
}

func (d *dispatcher) status(cli Client, old, new Status) {
	if d.onStatus == nil {
		return
	}
	d.dispatch(func() { d.onStatus(cli, old, new) })
}

func (d *dispatcher) message(cli Client, m Message) {
	if d.onMessage == nil {
		return
	}
	d.dispatch(func() { d.onMessage(cli, m) })
}

func (d *dispatcher) errorEvent(cli Client, err error) {
	if d.onError == nil {
		return
	}
	d.dispatch(func() { d.onError(cli, err) })
}

// challenge is synchronous from the transport's perspective: it bridges a
// host callback through a completion channel, matching spec.md §4.5's "the
// TLS challenge callback is synchronous ... bridges through an asynchronous
// completion handle."
func (d *dispatcher) challenge(cli Client, c Challenge) ChallengeDisposition {
	if d.onChallenge == nil {
		return ChallengeUseDefault
	}

	result := make(chan ChallengeDisposition, 1)
	d.dispatch(func() { result <- d.onChallenge(cli, c) })
	return <-result
}
