package wsupervisor

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// ConnectParams describes where and how to connect: either a bare URL or a
// full request (headers, subprotocols).
type ConnectParams struct {
	URL          url.URL
	Header       http.Header
	Subprotocols []string
	// Timeout is a handshake bound for Transport implementations that read
	// it. FastHTTPTransport and GorillaTransport do not read it; their
	// Dialer's HandshakeTimeout bounds the handshake instead.
	Timeout time.Duration
}

// ChallengeDisposition is the host's response to a TLS challenge forwarded
// through Transport.DidReceiveChallenge (spec.md §6).
type ChallengeDisposition int

const (
	ChallengeUseDefault ChallengeDisposition = iota
	ChallengeReject
	ChallengeCancel
	ChallengeUseCredential
)

// Challenge is an opaque TLS server-trust challenge. Credential carries
// whatever the host supplies when it returns ChallengeUseCredential.
type Challenge struct {
	Credential any
}

// TransportEvents is the capability-struct of callbacks a Transport drives,
// per spec.md §9's "capability struct of optional callbacks, not
// inheritance" guidance. Every field is optional; a nil field is a no-op.
type TransportEvents struct {
	DidOpen             func(subprotocol string)
	DidReceive          func(m Message)
	DidClose            func(code int, data []byte)
	DidFail             func(err error)
	DidReceiveChallenge func(c Challenge) ChallengeDisposition
}

// TransportHandle is the live connection a Transport.Connect call returns.
type TransportHandle interface {
	// Send transmits a message; completion is invoked with the write error,
	// if any, once the write has been attempted.
	Send(m Message, completion func(err error))
	// SendPing issues a protocol-level ping frame.
	SendPing(completion func(err error))
	// Cancel tears down the connection, optionally carrying a close code
	// and payload to send to the peer first.
	Cancel(code CloseCode, reason []byte)
}

// Transport is the external capability the core consumes: everything
// WebSocket-handshake- and frame-codec-specific is the transport's
// responsibility, kept out of scope per spec.md §1/§6.
type Transport interface {
	// Connect opens a WebSocket to params, delivering lifecycle events to
	// events, and returns a handle to the live connection.
	Connect(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error)
}
