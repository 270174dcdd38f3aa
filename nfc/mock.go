package nfc

import (
	"sync"
)

const Mock = "mock"

// MockRead is the outcome of one scripted transaction on a MockContext.
type MockRead struct {
	UID []byte
	Err error
}

// MockContext is a reader context that plays back a script of reads, one per Connect. Once the script runs out
// the last entry is repeated, or NoCardErr is returned if the script is empty.
type MockContext struct {
	Readers []string
	Reads   []MockRead

	lock      sync.Mutex
	next      int
	connects  int
	transmits [][]byte
	released  bool
}

// NewMockContext returns a context with one reader that always has the given card on it.
func NewMockContext(uid []byte) *MockContext {
	return &MockContext{
		Readers: []string{"Mock Reader 00 00"},
		Reads:   []MockRead{{UID: uid}},
	}
}

func (m *MockContext) ListReaders() ([]string, error) {
	return m.Readers, nil
}

func (m *MockContext) Connect(reader string) (Card, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.connects++
	if len(m.Reads) == 0 {
		return nil, NoCardErr
	}
	r := m.Reads[m.next]
	if m.next < len(m.Reads)-1 {
		m.next++
	}
	return &mockCard{ctx: m, read: r}, nil
}

func (m *MockContext) Release() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.released = true
	return nil
}

// Connects reports how many card connections have been opened.
func (m *MockContext) Connects() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.connects
}

// Transmitted returns every command sent to a card so far.
func (m *MockContext) Transmitted() [][]byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([][]byte(nil), m.transmits...)
}

func (m *MockContext) Released() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.released
}

type mockCard struct {
	ctx  *MockContext
	read MockRead
}

func (c *mockCard) Transmit(cmd []byte) ([]byte, error) {
	c.ctx.lock.Lock()
	c.ctx.transmits = append(c.ctx.transmits, append([]byte(nil), cmd...))
	c.ctx.lock.Unlock()

	if c.read.Err != nil {
		return nil, c.read.Err
	}
	return append(append([]byte(nil), c.read.UID...), 0x90, 0x00), nil
}

func (c *mockCard) Disconnect() error {
	return nil
}
