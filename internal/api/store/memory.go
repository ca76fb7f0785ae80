// Package store provides SessionStore backends for persistent sessions.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/grez-lucas/bankapi/internal/api"
)

// Memory keeps sessions for the lifetime of the process.
type Memory struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Save(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
