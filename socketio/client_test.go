package socketio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeServer speaks just enough Socket.IO to accept one client on the default namespace.
type fakeServer struct {
	*httptest.Server
	refuse   string
	received chan string
	send     chan string
	query    chan string
}

func newFakeServer(t *testing.T, refuse string) *fakeServer {
	s := &fakeServer{
		refuse:   refuse,
		received: make(chan string, 16),
		send:     make(chan string, 16),
		query:    make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.query <- r.URL.Path + "?" + r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`0{"sid":"eio-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))

		_, data, err := conn.ReadMessage()
		if err != nil || string(data) != "40" {
			return
		}
		if s.refuse != "" {
			conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"`+s.refuse+`"}`))
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"sock-1"}`))

		go func() {
			for frame := range s.send {
				if conn.WriteMessage(websocket.TextMessage, []byte(frame)) != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.received <- string(data)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) next(t *testing.T) string {
	select {
	case f := <-s.received:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return ""
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		in, out string
		fails   bool
	}{
		{in: "http://localhost:3000", out: "ws://localhost:3000/socket.io/?EIO=4&transport=websocket"},
		{in: "https://example.com/", out: "wss://example.com/socket.io/?EIO=4&transport=websocket"},
		{in: "ws://10.0.0.2:3000/custom/", out: "ws://10.0.0.2:3000/custom/?EIO=4&transport=websocket"},
		{in: "ftp://example.com", fails: true},
		{in: "http://", fails: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			u, err := EndpointURL(tc.in)
			if tc.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.out, u)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent("rfid-scanned", struct {
		UID    string `json:"uid"`
		Source string `json:"source"`
	}{"04A3F12C", "Remote-Python"})
	require.NoError(t, err)
	assert.Equal(t, `42["rfid-scanned",{"uid":"04A3F12C","source":"Remote-Python"}]`, string(frame))

	_, err = encodeEvent("")
	assert.Error(t, err)
}

func TestDecodeEvent(t *testing.T) {
	name, args, err := decodeEvent([]byte(`["rfid-scanned",{"uid":"04A3F12C"},7]`))
	require.NoError(t, err)
	assert.Equal(t, "rfid-scanned", name)
	require.Len(t, args, 2)
	assert.Equal(t, "04A3F12C", args[0].Get("uid").String())
	assert.Equal(t, int64(7), args[1].Int())

	name, _, err = decodeEvent([]byte(`/admin,12["hello"]`))
	require.NoError(t, err)
	assert.Equal(t, "hello", name)

	_, _, err = decodeEvent([]byte(`{"not":"an array"}`))
	assert.ErrorIs(t, err, ErrBadPacket)

	_, _, err = decodeEvent([]byte(`[42]`))
	assert.ErrorIs(t, err, ErrBadPacket)
}

func TestParseOpen(t *testing.T) {
	h, err := parseOpen([]byte(`0{"sid":"abc","pingInterval":300,"pingTimeout":200}`))
	require.NoError(t, err)
	assert.Equal(t, handshake{SID: "abc", PingInterval: 300, PingTimeout: 200}, h)

	_, err = parseOpen([]byte(`40`))
	assert.ErrorIs(t, err, ErrBadPacket)
}

func TestDialAndEmit(t *testing.T) {
	s := newFakeServer(t, "")

	connected := false
	c, err := Dial(context.Background(), s.URL, OnConnect(func() { connected = true }))
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, connected)
	assert.True(t, c.Connected())
	assert.Equal(t, "sock-1", c.SID())
	assert.Equal(t, "/socket.io/?EIO=4&transport=websocket", <-s.query)

	require.NoError(t, c.Emit("rfid-scanned", map[string]string{"uid": "04A3F12C", "source": "Remote-Python"}))
	assert.Equal(t, `42["rfid-scanned",{"source":"Remote-Python","uid":"04A3F12C"}]`, s.next(t))
}

func TestPingIsAnswered(t *testing.T) {
	s := newFakeServer(t, "")
	c, err := Dial(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()

	s.send <- "2"
	assert.Equal(t, "3", s.next(t))
}

func TestInboundEventsReachHandlers(t *testing.T) {
	s := newFakeServer(t, "")
	c, err := Dial(context.Background(), s.URL)
	require.NoError(t, err)
	defer c.Close()

	got := make(chan string, 1)
	c.On("rfid-scanned", func(args []gjson.Result) {
		got <- args[0].Get("uid").String()
	})

	s.send <- `42["something-else",{}]`
	s.send <- `42["rfid-scanned",{"uid":"04A3F12D","source":"Remote-Python","timestamp":"2024-01-01T00:00:00Z"}]`
	select {
	case uid := <-got:
		assert.Equal(t, "04A3F12D", uid)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestConnectErrorFailsDial(t *testing.T) {
	s := newFakeServer(t, "not allowed")
	_, err := Dial(context.Background(), s.URL)
	require.Error(t, err)

	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "not allowed", ce.Message)
}

func TestDialUnreachableServer(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	_, err := Dial(context.Background(), url, WithHandshakeTimeout(time.Second))
	assert.Error(t, err)
}

func TestEmitAfterServerDisconnect(t *testing.T) {
	s := newFakeServer(t, "")

	reasons := make(chan string, 2)
	c, err := Dial(context.Background(), s.URL, OnDisconnect(func(reason string) { reasons <- reason }))
	require.NoError(t, err)

	s.send <- "41"
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}

	assert.Equal(t, "io server disconnect", <-reasons)
	assert.ErrorIs(t, c.Emit("rfid-scanned", nil), ErrNotConnected)
	assert.NoError(t, c.Close())
	assert.Len(t, reasons, 0)
}

func TestCloseSendsDisconnect(t *testing.T) {
	s := newFakeServer(t, "")

	var reason string
	c, err := Dial(context.Background(), s.URL, OnDisconnect(func(r string) { reason = r }))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, "41", s.next(t))
	assert.Equal(t, "io client disconnect", reason)
	assert.False(t, c.Connected())
	assert.True(t, strings.HasPrefix(c.Server(), "http://"))
}
