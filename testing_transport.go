package wsupervisor

import "context"

// mockTransport is a func-field test double: ConnectFunc is required;
// the rest of the API surface is exercised through the TransportEvents it
// receives and the TransportHandle it returns.
type mockTransport struct {
	ConnectFunc func(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error)
}

func (m *mockTransport) Connect(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
	return m.ConnectFunc(ctx, params, events)
}

// mockHandle is a func-field TransportHandle double.
type mockHandle struct {
	SendFunc     func(m Message, completion func(error))
	SendPingFunc func(completion func(error))
	CancelFunc   func(code CloseCode, reason []byte)
}

func (h *mockHandle) Send(m Message, completion func(error)) {
	if h.SendFunc != nil {
		h.SendFunc(m, completion)
		return
	}
	if completion != nil {
		completion(nil)
	}
}

func (h *mockHandle) SendPing(completion func(error)) {
	if h.SendPingFunc != nil {
		h.SendPingFunc(completion)
		return
	}
	if completion != nil {
		completion(nil)
	}
}

func (h *mockHandle) Cancel(code CloseCode, reason []byte) {
	if h.CancelFunc != nil {
		h.CancelFunc(code, reason)
	}
}
