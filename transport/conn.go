// Package transport specifies the duplex frame channel at the boundary the
// core consumes (spec §1, §6): a full-duplex message stream carrying
// textual (UTF-8 JSON) and binary frames, FIFO within each type. The actual
// wire transport — a WebSocket connection to ws(s)://<host>/sendspin — is
// an external collaborator; everything above the frame boundary lives in
// the protocol and decode packages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// FrameKind distinguishes the two transport frame types.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

func (k FrameKind) String() string {
	if k == FrameBinary {
		return "binary"
	}
	return "text"
}

// Frame is one inbound frame as delivered by Conn.Recv.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Conn is the duplex channel the Protocol Engine and Decode Front-end
// consume. Recv delivers frames of either kind in the order the transport
// received them; callers dispatch on Kind.
type Conn interface {
	// Recv blocks for the next inbound frame, or returns ctx.Err() /
	// io.EOF-wrapping error when the channel closes.
	Recv(ctx context.Context) (Frame, error)
	// SendText writes a single JSON text frame.
	SendText(ctx context.Context, payload []byte) error
	// SendBinary writes a single binary frame.
	SendBinary(ctx context.Context, payload []byte) error
	// Close closes the underlying channel. Idempotent.
	Close() error
}

// DialOptions configures Dial.
type DialOptions struct {
	// HandshakeTimeout bounds the WebSocket upgrade. Zero means the
	// gorilla/websocket default.
	HandshakeTimeout time.Duration
}

// Dial opens a connection to ws(s)://<host>/sendspin, upgrading from the
// given HTTP/HTTPS base URL as described in spec §6.
func Dial(ctx context.Context, baseURL string, opts DialOptions) (Conn, error) {
	wsURL, err := toWebSocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	c, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", wsURL, err)
	}
	return &wsConn{ws: c}, nil
}

func toWebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("transport: invalid base url %q: %w", baseURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket URL
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/sendspin"
	return u.String(), nil
}

// wsConn adapts a gorilla/websocket connection to Conn.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Recv(ctx context.Context) (Frame, error) {
	type result struct {
		kind FrameKind
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			done <- result{err: err}
			return
		}
		switch mt {
		case websocket.TextMessage:
			done <- result{kind: FrameText, data: data}
		case websocket.BinaryMessage:
			done <- result{kind: FrameBinary, data: data}
		default:
			done <- result{err: fmt.Errorf("transport: unexpected message type %d", mt)}
		}
	}()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Frame{}, fmt.Errorf("transport: recv: %w", r.err)
		}
		return Frame{Kind: r.kind, Data: r.data}, nil
	}
}

func (c *wsConn) SendText(ctx context.Context, payload []byte) error {
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("transport: send text: %w", err)
	}
	return nil
}

func (c *wsConn) SendBinary(ctx context.Context, payload []byte) error {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("transport: send binary: %w", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	err := c.ws.Close()
	if err != nil && (errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)) {
		return nil
	}
	return err
}
