package wsupervisor

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fasthttp/websocket"
)

// FastHTTPTransport adapts github.com/fasthttp/websocket to the Transport
// capability contract: control handlers are overridden into a channel, and
// reads/writes run on a read-loop/write-loop-over-channel split with
// write-deadline handling.
type FastHTTPTransport struct {
	Dialer *websocket.Dialer
	Logger Logger
}

// NewFastHTTPTransport returns a FastHTTPTransport with a default dialer if
// dialer is nil.
func NewFastHTTPTransport(dialer *websocket.Dialer, log Logger) *FastHTTPTransport {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if log == nil {
		log = newNoopLogger()
	}
	return &FastHTTPTransport{Dialer: dialer, Logger: log}
}

type fasthttpHandle struct {
	conn   *websocket.Conn
	logger logger

	send chan sendRequest

	closeOnce sync.Once
	closeC    chan struct{}
}

type sendRequest struct {
	msg        Message
	completion func(error)
}

func (t *FastHTTPTransport) Connect(ctx context.Context, params ConnectParams, events TransportEvents) (TransportHandle, error) {
	log := t.Logger.WithField("net", "fasthttp_websocket")

	header := params.Header
	if header == nil {
		header = http.Header{}
	}
	for _, p := range params.Subprotocols {
		header.Add("Sec-WebSocket-Protocol", p)
	}

	conn, resp, err := t.Dialer.Dial(params.URL.String(), header)
	if err = handleDialError(conn, resp, err); err != nil {
		log.Errorf("connection err to %s: %s", params.URL.String(), err)
		return nil, err
	}

	log.Debugf("success opening connection to %s", params.URL.String())

	h := &fasthttpHandle{
		conn:   conn,
		logger: log,
		send:   make(chan sendRequest, 32),
		closeC: make(chan struct{}),
	}

	// Override control message handlers to gain full control over control
	// frames, as some peers rate-limit or swallow them otherwise.
	conn.SetPingHandler(func(appData string) error {
		log.Debugln("<= [PING]")
		if events.DidReceive != nil {
			events.DidReceive(NewPingMessage([]byte(appData)))
		}
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		log.Debugln("<= [PONG]")
		if events.DidReceive != nil {
			events.DidReceive(NewPongMessage([]byte(appData)))
		}
		return nil
	})

	conn.SetCloseHandler(func(code int, text string) error {
		log.Debugln("<= [CLOSE]")
		h.safeClose()
		if events.DidClose != nil {
			events.DidClose(code, []byte(text))
		}
		return nil
	})

	subprotocol := conn.Subprotocol()
	if events.DidOpen != nil {
		events.DidOpen(subprotocol)
	}

	go h.readLoop(ctx, events)
	go h.writeLoop(ctx, events)

	return h, nil
}

func (h *fasthttpHandle) readLoop(ctx context.Context, events TransportEvents) {
	defer h.safeClose()

	for {
		select {
		case <-h.closeC:
			return
		case <-ctx.Done():
			return
		default:
			messageType, bts, err := h.conn.ReadMessage()
			if err != nil {
				h.logger.Errorf("error occurred on websocket read: %s", err)
				if events.DidFail != nil {
					events.DidFail(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				h.logger.Debugln("<= [BIN]")
				if events.DidReceive != nil {
					events.DidReceive(NewBinaryMessage(bts))
				}
			case websocket.CloseMessage:
				// Normally unreachable: gorilla/fasthttp-compatible dialers
				// intercept close control frames via SetCloseHandler above
				// before ReadMessage returns. Handled defensively in case a
				// future library version changes that.
				h.logger.Debugln("<= [CLOSE]")
				if events.DidClose != nil {
					events.DidClose(0, bts)
				}
				return
			default:
				h.logger.Debugf("<= [DATA] %s", string(bts))
				if events.DidReceive != nil {
					events.DidReceive(NewTextMessage(bts))
				}
			}
		}
	}
}

func (h *fasthttpHandle) writeLoop(ctx context.Context, events TransportEvents) {
	defer h.safeClose()

	for {
		select {
		case <-h.closeC:
			return
		case <-ctx.Done():
			return
		case req := <-h.send:
			deadline := time.Now().Add(time.Second)
			_ = h.conn.SetWriteDeadline(deadline)

			var err error
			switch req.msg.Type() {
			case PingMessage:
				h.logger.Debugln("=> [PING]")
				err = h.conn.WriteControl(websocket.PingMessage, req.msg.Data(), deadline)
				if ne, ok := err.(net.Error); ok && ne.Temporary() {
					err = nil
				}
			case PongMessage:
				h.logger.Debugln("=> [PONG]")
				err = h.conn.WriteControl(websocket.PongMessage, req.msg.Data(), deadline)
			case BinaryMessage:
				err = h.conn.WriteMessage(websocket.BinaryMessage, req.msg.Data())
			default:
				h.logger.Infof("=> [DATA] %s", req.msg.Data())
				err = h.conn.WriteMessage(websocket.TextMessage, req.msg.Data())
			}

			if err != nil && websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				err = errors.Wrap(ErrConnectionClosed, err.Error())
			}

			if req.completion != nil {
				req.completion(err)
			}

			if err != nil && events.DidFail != nil {
				events.DidFail(err)
			}
		}
	}
}

func (h *fasthttpHandle) Send(m Message, completion func(error)) {
	select {
	case h.send <- sendRequest{msg: m, completion: completion}:
	case <-h.closeC:
		if completion != nil {
			completion(ErrConnectionClosed)
		}
	}
}

func (h *fasthttpHandle) SendPing(completion func(error)) {
	h.Send(NewPingMessage(nil), completion)
}

func (h *fasthttpHandle) Cancel(code CloseCode, reason []byte) {
	h.safeClose()
	// Discard reason payload on transmit per SPEC_FULL.md §9 open-question
	// #2: only the numeric code travels on the wire. Non-sendable codes
	// (Invalid included) never carry a status code onto the wire at all.
	deadline := time.Now().Add(time.Second)
	payload := []byte{}
	if code.Sendable() {
		payload = websocket.FormatCloseMessage(int(code.Raw()), "")
	}
	_ = h.conn.WriteControl(websocket.CloseMessage, payload, deadline)
	_ = h.conn.Close()
}

func (h *fasthttpHandle) safeClose() {
	h.closeOnce.Do(func() { close(h.closeC) })
}

func handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	var msg string
	if resp != nil {
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}
	if conn == nil {
		return ErrCannotConnect
	}
	return nil
}
