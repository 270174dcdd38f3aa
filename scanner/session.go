package scanner

import (
	"context"

	"github.com/callebjorkell/rfid-bridge/socketio"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Session is the event channel to the server for one run of the bridge. It is opened once at startup and closed on
// exit; nothing else holds on to the connection.
type Session struct {
	ID     string
	client *socketio.Client
	log    *log.Entry
}

// Connect opens the session. A failure here is a StartupError and the caller is expected to give up rather than retry.
func Connect(ctx context.Context, server string, opts ...socketio.Option) (*Session, error) {
	s := &Session{ID: uuid.NewString()}
	s.log = log.WithField("session", s.ID)

	opts = append([]socketio.Option{
		socketio.OnConnect(func() {
			s.log.Infof("Connected to Server at %v", server)
		}),
		socketio.OnDisconnect(func(reason string) {
			s.log.WithField("reason", reason).Info("Disconnected from Server")
		}),
	}, opts...)

	c, err := socketio.Dial(ctx, server, opts...)
	if err != nil {
		return nil, &StartupError{Stage: "connect", Err: err}
	}
	s.client = c

	// the server rebroadcasts every scan to all clients, us included
	c.On(Event, func(args []gjson.Result) {
		if len(args) > 0 {
			s.log.Debugf("Server broadcast %v for %v from %v", Event, args[0].Get("uid"), args[0].Get("source"))
		}
	})
	return s, nil
}

func (s *Session) Emit(event string, args ...interface{}) error {
	return s.client.Emit(event, args...)
}

func (s *Session) Connected() bool {
	return s.client.Connected()
}

func (s *Session) Close() error {
	return s.client.Close()
}
