package socketio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second

	// used until the server tells us otherwise in the open packet
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

// Handler is called from the read loop for every inbound event it was registered for.
type Handler func(args []gjson.Result)

// Client is a Socket.IO connection to the default namespace of a server, carried over a single websocket. There is no
// polling transport and no reconnection: once the connection is gone, Emit fails with ErrNotConnected.
type Client struct {
	server string
	sid    string
	conn   *websocket.Conn

	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	header           http.Header
	dialer           *websocket.Dialer
	onConnect        func()
	onDisconnect     func(reason string)

	connected  atomic.Bool
	writeLock  sync.Mutex
	handlers   map[string]Handler
	handleLock sync.RWMutex
	downOnce   sync.Once
	closeOnce  sync.Once
	done       chan struct{}
	readWindow time.Duration
}

type Option func(*Client)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = d }
}

// WithWriteTimeout bounds every frame write. Zero, the default, means no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func OnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = fn }
}

// OnDisconnect is called exactly once, whichever side ends the session.
func OnDisconnect(fn func(reason string)) Option {
	return func(c *Client) { c.onDisconnect = fn }
}

// Dial opens the websocket and joins the default namespace. It returns once the server has acknowledged the
// namespace connection.
func Dial(ctx context.Context, server string, opts ...Option) (*Client, error) {
	c := &Client{
		server:           server,
		handshakeTimeout: DefaultHandshakeTimeout,
		dialer:           websocket.DefaultDialer,
		handlers:         make(map[string]Handler),
		done:             make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	endpoint, err := EndpointURL(server)
	if err != nil {
		return nil, err
	}

	if c.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.handshakeTimeout)
		defer cancel()
	}

	log.Debugf("Dialing %v", endpoint)
	conn, _, err := c.dialer.DialContext(ctx, endpoint, c.header)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %v: %w", server, err)
	}
	c.conn = conn

	if err := c.handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	c.connected.Store(true)
	go c.readLoop()

	if c.onConnect != nil {
		c.onConnect()
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading open packet: %w", err)
	}
	h, err := parseOpen(data)
	if err != nil {
		return err
	}

	interval, timeout := defaultPingInterval, defaultPingTimeout
	if h.PingInterval > 0 {
		interval = time.Duration(h.PingInterval) * time.Millisecond
	}
	if h.PingTimeout > 0 {
		timeout = time.Duration(h.PingTimeout) * time.Millisecond
	}
	c.readWindow = interval + timeout
	log.Debugf("Engine.IO session %v, ping every %v", h.SID, interval)

	if err := c.write([]byte{engineMessage, packetConnect}); err != nil {
		return fmt.Errorf("joining namespace: %w", err)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for namespace ack: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case enginePing:
			if err := c.write([]byte{enginePong}); err != nil {
				return err
			}
			continue
		case engineClose:
			return errors.New("server closed the session during handshake")
		case engineMessage:
		default:
			continue
		}

		if len(data) < 2 {
			return ErrBadPacket
		}
		switch data[1] {
		case packetConnect:
			c.sid = gjson.GetBytes(data[2:], "sid").String()
			return nil
		case packetConnectError:
			return &ConnectError{Message: connectErrorMessage(data[2:])}
		default:
			log.Debugf("Ignoring packet %q before namespace ack", data)
		}
	}
}

// On registers the handler for inbound events with the given name, replacing any earlier one.
func (c *Client) On(event string, h Handler) {
	c.handleLock.Lock()
	defer c.handleLock.Unlock()
	c.handlers[event] = h
}

// SID is the socket id the server assigned on the namespace connection.
func (c *Client) SID() string {
	return c.sid
}

func (c *Client) Server() string {
	return c.server
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Done is closed when the read loop has exited, i.e. the session is over.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Emit sends an event without asking for an acknowledgement.
func (c *Client) Emit(event string, args ...interface{}) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	frame, err := encodeEvent(event, args...)
	if err != nil {
		return err
	}
	log.Debugf("Emitting %s", frame)
	if err := c.write(frame); err != nil {
		return fmt.Errorf("emit %v: %w", event, err)
	}
	return nil
}

// Close leaves the namespace and closes the websocket. It blocks until the read loop is gone.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		wasConnected := c.Connected()
		if wasConnected {
			c.write([]byte{engineMessage, packetDisconnect})
		}
		c.down("io client disconnect")

		c.writeLock.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeLock.Unlock()

		err = c.conn.Close()
		<-c.done
		if !wasConnected {
			// the server already hung up, closing twice is not an error for us
			err = nil
		}
	})
	return err
}

func (c *Client) write(frame []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) down(reason string) {
	c.downOnce.Do(func() {
		c.connected.Store(false)
		log.Debugf("Socket.IO session ended: %v", reason)
		if c.onDisconnect != nil {
			c.onDisconnect(reason)
		}
	})
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		// the server pings on an interval, so silence for longer than interval+timeout means it is gone
		c.conn.SetReadDeadline(time.Now().Add(c.readWindow))
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.down(fmt.Sprintf("transport error: %v", err))
			return
		}
		if kind != websocket.TextMessage || len(data) == 0 {
			continue
		}

		switch data[0] {
		case enginePing:
			if err := c.write([]byte{enginePong}); err != nil {
				log.Debugf("Could not answer ping: %v", err)
			}
		case engineClose:
			c.down("transport close")
			c.conn.Close()
			return
		case engineMessage:
			c.handleMessage(data[1:])
		case engineNoop, enginePong:
		default:
			log.Debugf("Unknown engine packet %q", data)
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case packetEvent:
		name, args, err := decodeEvent(data[1:])
		if err != nil {
			log.Debugf("Dropping event %q: %v", data, err)
			return
		}
		c.handleLock.RLock()
		h, ok := c.handlers[name]
		c.handleLock.RUnlock()
		if !ok {
			log.Debugf("No handler for event %v", name)
			return
		}
		h(args)
	case packetDisconnect:
		c.down("io server disconnect")
		c.conn.Close()
	case packetAck:
		// we never ask for acks
	default:
		log.Debugf("Ignoring socket.io packet %q", data)
	}
}
