package transport

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
)

// WebSocket wraps a *websocket.Conn. Frame boundaries come for free from
// the WebSocket message framing, so unlike TCP no length prefix is added.
// Grounded on gaspardpetit/nfrx's sdk/base/tunnel/registry.go, which accepts
// connections with websocket.Accept, disables the default read limit, and
// drives c.Read/c.Write directly.
type WebSocket struct {
	conn *websocket.Conn
}

// NewWebSocket wraps an already-established connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	conn.SetReadLimit(-1)
	return &WebSocket{conn: conn}
}

// AcceptWebSocket upgrades an incoming HTTP request to a WebSocket and
// wraps it, as nfrx's WSHandler does before handing the connection to its
// read loop.
func AcceptWebSocket(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: websocket accept")
	}
	return NewWebSocket(c), nil
}

// DialWebSocket opens a client-side WebSocket to url.
func DialWebSocket(ctx context.Context, url string) (*WebSocket, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: websocket dial")
	}
	return NewWebSocket(c), nil
}

func (t *WebSocket) Send(ctx context.Context, frame []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return errors.Wrap(err, "transport: websocket write")
	}
	return nil
}

func (t *WebSocket) Recv(ctx context.Context) ([]byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "transport: websocket read")
	}
	if typ != websocket.MessageBinary {
		return nil, errors.New("transport: unexpected websocket text frame")
	}
	return data, nil
}

func (t *WebSocket) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}
