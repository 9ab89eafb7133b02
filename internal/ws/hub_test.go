package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	loanID   int64
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, loanID int64) *mockClient {
	return &mockClient{
		id:       id,
		loanID:   loanID,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) LoanID() int64 {
	return m.loanID
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	client1 := newMockClient("client-1", 1)
	client2 := newMockClient("client-2", 1)
	client3 := newMockClient("client-3", 2)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(1))
	assert.Equal(t, 1, hub.ClientCount(2))
	assert.Equal(t, 0, hub.ClientCount(999))

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(1))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.ClientCount(1))
	assert.Equal(t, 0, hub.ClientCount(2))
}

func TestHub_Broadcast_LoanIsolation(t *testing.T) {
	hub := NewHub()

	client1a := newMockClient("client-1a", 1)
	client1b := newMockClient("client-1b", 1)
	client2 := newMockClient("client-2", 2)

	hub.Register(client1a)
	hub.Register(client1b)
	hub.Register(client2)

	hub.Broadcast(1, RepaymentRecorded(map[string]interface{}{"loanId": 1}))

	// Sends are asynchronous
	require.Eventually(t, func() bool {
		return len(client1a.GetMessages()) == 1 && len(client1b.GetMessages()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Empty(t, client2.GetMessages())
}

func TestHub_Broadcast_NoClients(t *testing.T) {
	hub := NewHub()

	// Broadcasting to a loan with no watchers must not panic
	hub.Broadcast(42, LoanCompleted(map[string]interface{}{"loanId": 42}))
	assert.Equal(t, 0, hub.ClientCount(42))
}

func TestHub_ConcurrentRegisterBroadcast(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client := newMockClient(string(rune('a'+n)), 1)
			hub.Register(client)
			hub.Broadcast(1, LoanApproved(map[string]interface{}{"loanId": 1}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, hub.ClientCount(1))
}
