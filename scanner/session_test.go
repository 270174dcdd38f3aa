package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callebjorkell/rfid-bridge/nfc"
	"github.com/callebjorkell/rfid-bridge/socketio"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketServer accepts a single Socket.IO client and hands every frame it sends to frames.
func socketServer(t *testing.T) (*httptest.Server, <-chan string) {
	frames := make(chan string, 16)
	upgrader := websocket.Upgrader{}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"e1","pingInterval":25000,"pingTimeout":20000}`))
		if _, data, err := conn.ReadMessage(); err != nil || string(data) != "40" {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"s1"}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(data)
		}
	}))
	t.Cleanup(s.Close)
	return s, frames
}

func TestSessionEndToEnd(t *testing.T) {
	srv, frames := socketServer(t)

	session, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer session.Close()
	assert.True(t, session.Connected())
	assert.NotEmpty(t, session.ID)

	m := &nfc.MockContext{
		Readers: []string{"reader"},
		Reads:   []nfc.MockRead{{UID: cardA}, {UID: cardA}, {UID: cardA2}},
	}
	s := New(session, m)
	assert.Equal(t, []Outcome{Emitted, Unchanged, Emitted}, pollAll(s, 3))

	next := func() string {
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("nothing emitted")
			return ""
		}
	}
	assert.Equal(t, `42["rfid-scanned",{"uid":"04A3F12C","source":"Remote-Python"}]`, next())
	assert.Equal(t, `42["rfid-scanned",{"uid":"04A3F12D","source":"Remote-Python"}]`, next())
}

func TestConnectFailureIsStartupError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), addr, socketio.WithHandshakeTimeout(time.Second))
	var se *StartupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "connect", se.Stage)
}
