package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/callebjorkell/rfid-bridge/nfc"
	log "github.com/sirupsen/logrus"
)

const (
	Event           = "rfid-scanned"
	DefaultSource   = "Remote-Python"
	DefaultInterval = 500 * time.Millisecond
)

type Outcome int

const (
	Unchanged Outcome = iota
	Emitted
	ReadFailed
	EmitFailed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Emitted:
		return "emitted"
	case ReadFailed:
		return "read failed"
	case EmitFailed:
		return "emit failed"
	}
	return "unknown"
}

// Payload is what the server gets for every new card.
type Payload struct {
	UID    string `json:"uid"`
	Source string `json:"source"`
}

type Emitter interface {
	Emit(event string, args ...interface{}) error
}

// Indicator gets told about what happens in the loop. ui.StatusLight is one.
type Indicator interface {
	Blue()
	Green()
	Red()
}

type Option func(*Scanner)

func WithInterval(d time.Duration) Option {
	return func(s *Scanner) { s.interval = d }
}

func WithSource(source string) Option {
	return func(s *Scanner) { s.source = source }
}

// WithReadTimeout gives up on a card transaction after d. The default of zero waits for the driver forever.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.readTimeout = d }
}

func WithIndicator(i Indicator) Option {
	return func(s *Scanner) { s.light = i }
}

// Scanner polls the first reader for cards and emits every identifier that differs from the one seen before it.
type Scanner struct {
	emitter     Emitter
	readers     nfc.Context
	light       Indicator
	interval    time.Duration
	readTimeout time.Duration
	source      string

	// the last identifier emitted, ok is false when nothing is remembered
	last struct {
		id string
		ok bool
	}
}

func New(emitter Emitter, readers nfc.Context, opts ...Option) *Scanner {
	s := &Scanner{
		emitter:  emitter,
		readers:  readers,
		light:    noLight{},
		interval: DefaultInterval,
		source:   DefaultSource,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run picks the first reader and polls it until ctx is done. Having no reader at all is not an error, there is just
// nothing to do.
func (s *Scanner) Run(ctx context.Context) error {
	readers, err := s.readers.ListReaders()
	if err != nil {
		return &StartupError{Stage: "list readers", Err: err}
	}
	if len(readers) == 0 {
		log.Info("No reader found.")
		return nil
	}

	reader := readers[0]
	logger := log.WithField("reader", reader)
	logger.Info("Ready to scan...")
	s.light.Blue()

	for {
		outcome, err := s.Poll(reader)
		switch outcome {
		case Emitted:
			s.light.Green()
		case ReadFailed:
			if errors.Is(err, nfc.NoCardErr) {
				// an empty reader is the normal state, keep it out of the log
				logger.Debugf("Error while reading card: %v", err)
			} else {
				logger.Warnf("Error while reading card: %v", err)
				s.light.Red()
			}
		case EmitFailed:
			logger.Errorf("Could not send card to server: %v", err)
			s.light.Red()
		}

		select {
		case <-ctx.Done():
			logger.Debug("Scanner stopped. Returning.")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// Poll does a single read on the reader. Any error forgets the last identifier, so the same card is sent again
// once it reads fine.
func (s *Scanner) Poll(reader string) (Outcome, error) {
	id, err := s.read(reader)
	if err != nil {
		s.forget()
		return ReadFailed, &ReadError{Reader: reader, Err: err}
	}

	log.Debugf("ID: %v, last: %v (%v)", id, s.last.id, s.last.ok)
	if s.last.ok && s.last.id == id {
		return Unchanged, nil
	}

	log.WithField("uid", id).Infof("Scanned: %v", id)
	if err := s.emitter.Emit(Event, Payload{UID: id, Source: s.source}); err != nil {
		s.forget()
		return EmitFailed, &EmitError{UID: id, Err: err}
	}
	s.last.id, s.last.ok = id, true
	return Emitted, nil
}

// Last returns the remembered identifier, if any.
func (s *Scanner) Last() (string, bool) {
	return s.last.id, s.last.ok
}

func (s *Scanner) forget() {
	s.last.id, s.last.ok = "", false
}

func (s *Scanner) read(reader string) (string, error) {
	if s.readTimeout <= 0 {
		return nfc.ReadCardID(s.readers, reader)
	}

	type result struct {
		id  string
		err error
	}
	// buffered so a late driver can still finish and the goroutine goes away
	done := make(chan result, 1)
	go func() {
		id, err := nfc.ReadCardID(s.readers, reader)
		done <- result{id, err}
	}()

	select {
	case r := <-done:
		return r.id, r.err
	case <-time.After(s.readTimeout):
		return "", ReadTimeoutErr
	}
}

type noLight struct{}

func (noLight) Blue()  {}
func (noLight) Green() {}
func (noLight) Red()   {}
