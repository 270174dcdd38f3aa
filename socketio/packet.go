package socketio

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

// Engine.IO v4 packet types, the first byte of every websocket frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, the second byte of an Engine.IO message.
const (
	packetConnect      = '0'
	packetDisconnect   = '1'
	packetEvent        = '2'
	packetAck          = '3'
	packetConnectError = '4'
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotConnected = errors.New("socket.io client is not connected")
	ErrBadPacket    = errors.New("malformed socket.io packet")
)

// ConnectError is returned when the server refuses the namespace connection.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("server refused connection: %s", e.Message)
}

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string
	PingInterval int64
	PingTimeout  int64
}

// EndpointURL turns the server address into the websocket URL of its Engine.IO endpoint.
func EndpointURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %v", u.Scheme, server)
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %v", server)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseOpen(data []byte) (handshake, error) {
	if len(data) < 2 || data[0] != engineOpen {
		return handshake{}, fmt.Errorf("%w: expected open packet, got %q", ErrBadPacket, data)
	}
	h := gjson.ParseBytes(data[1:])
	if !h.IsObject() {
		return handshake{}, fmt.Errorf("%w: open payload is not an object", ErrBadPacket)
	}
	return handshake{
		SID:          h.Get("sid").String(),
		PingInterval: h.Get("pingInterval").Int(),
		PingTimeout:  h.Get("pingTimeout").Int(),
	}, nil
}

// encodeEvent builds the 42["event",args...] frame for the default namespace.
func encodeEvent(event string, args ...interface{}) ([]byte, error) {
	if event == "" {
		return nil, errors.New("event name must not be empty")
	}
	body, err := json.Marshal(append([]interface{}{event}, args...))
	if err != nil {
		return nil, err
	}
	return append([]byte{engineMessage, packetEvent}, body...), nil
}

// decodeEvent splits the payload of an EVENT packet into its name and arguments. The payload is what follows the
// packet type: an optional namespace, an optional ack id and then the JSON array.
func decodeEvent(payload []byte) (string, []gjson.Result, error) {
	s := string(payload)
	if strings.HasPrefix(s, "/") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return "", nil, ErrBadPacket
		}
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, "0123456789")

	arr := gjson.Parse(s)
	if !arr.IsArray() {
		return "", nil, fmt.Errorf("%w: event payload is not an array", ErrBadPacket)
	}
	items := arr.Array()
	if len(items) == 0 || items[0].Type != gjson.String {
		return "", nil, fmt.Errorf("%w: event without a name", ErrBadPacket)
	}
	return items[0].String(), items[1:], nil
}

func connectErrorMessage(payload []byte) string {
	r := gjson.ParseBytes(payload)
	if m := r.Get("message"); m.Exists() {
		return m.String()
	}
	if r.Type == gjson.String {
		return r.String()
	}
	return string(payload)
}
