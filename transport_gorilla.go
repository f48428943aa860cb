package wsupervisor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// GorillaTransport adapts github.com/gorilla/websocket to the Transport
// capability contract. Adapted from layr8-go-sdk's channel.go: a
// dial-with-context call followed by a dedicated reader goroutine, rewritten
// against the generic Transport contract instead of a Phoenix-Channel-
// specific protocol. Offered as a drop-in alternative to FastHTTPTransport
// for hosts that already depend on gorilla/websocket elsewhere.
type GorillaTransport struct {
	Dialer *websocket.Dialer
	Logger Logger
}

func NewGorillaTransport(dialer *websocket.Dialer, log Logger) *GorillaTransport {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if log == nil {
		log = newNoopLogger()
	}
	return &GorillaTransport{Dialer: dialer, Logger: log}
}

type gorillaHandle struct {
	conn   *websocket.Conn
	logger logger
	mu     sync.Mutex

	closeOnce sync.Once
	closeC    chan struct{}
}

func (t *GorillaTransport) Connect(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
	log := t.Logger.WithField("net", "gorilla_websocket")

	header := params.Header
	if header == nil {
		header = http.Header{}
	}
	for _, p := range params.Subprotocols {
		header.Add("Sec-WebSocket-Protocol", p)
	}

	conn, resp, err := t.Dialer.DialContext(ctx, params.URL.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.Wrap(ErrRateLimit, err.Error())
		}
		return nil, errors.Wrap(ErrCannotConnect, err.Error())
	}

	log.Debugf("connected to %s", params.URL.String())

	h := &gorillaHandle{conn: conn, logger: log, closeC: make(chan struct{})}

	conn.SetPingHandler(func(appData string) error {
		if events.DidReceive != nil {
			events.DidReceive(NewPingMessage([]byte(appData)))
		}
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		if events.DidReceive != nil {
			events.DidReceive(NewPongMessage([]byte(appData)))
		}
		return nil
	})
	conn.SetCloseHandler(func(code int, text string) error {
		h.safeClose()
		if events.DidClose != nil {
			events.DidClose(code, []byte(text))
		}
		return nil
	})

	if events.DidOpen != nil {
		events.DidOpen(conn.Subprotocol())
	}

	go h.readLoop(events)

	return h, nil
}

func (h *gorillaHandle) readLoop(events TransportEvents) {
	defer h.safeClose()

	for {
		select {
		case <-h.closeC:
			return
		default:
			messageType, bts, err := h.conn.ReadMessage()
			if err != nil {
				h.logger.Errorf("read error: %s", err)
				if events.DidFail != nil {
					events.DidFail(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				if events.DidReceive != nil {
					events.DidReceive(NewBinaryMessage(bts))
				}
			case websocket.CloseMessage:
				if events.DidClose != nil {
					events.DidClose(0, bts)
				}
				return
			default:
				if events.DidReceive != nil {
					events.DidReceive(NewTextMessage(bts))
				}
			}
		}
	}
}

func (h *gorillaHandle) Send(m Message, completion func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	_ = h.conn.SetWriteDeadline(deadline)

	var err error
	switch m.Type() {
	case PingMessage:
		err = h.conn.WriteControl(websocket.PingMessage, m.Data(), deadline)
	case PongMessage:
		err = h.conn.WriteControl(websocket.PongMessage, m.Data(), deadline)
	case BinaryMessage:
		err = h.conn.WriteMessage(websocket.BinaryMessage, m.Data())
	default:
		err = h.conn.WriteMessage(websocket.TextMessage, m.Data())
	}

	if completion != nil {
		completion(err)
	}
}

func (h *gorillaHandle) SendPing(completion func(error)) {
	h.Send(NewPingMessage(nil), completion)
}

func (h *gorillaHandle) Cancel(code CloseCode, _ []byte) {
	h.safeClose()
	deadline := time.Now().Add(time.Second)
	// Non-sendable codes (Invalid included) never carry a status code onto
	// the wire at all.
	payload := []byte{}
	if code.Sendable() {
		payload = websocket.FormatCloseMessage(int(code.Raw()), "")
	}
	_ = h.conn.WriteControl(websocket.CloseMessage, payload, deadline)
	_ = h.conn.Close()
}

func (h *gorillaHandle) safeClose() {
	h.closeOnce.Do(func() { close(h.closeC) })
}
