package blacklist

import (
	"context"
	"sync"
)

// Memory is the in-process Store. Reads vastly outnumber writes, so a
// coarse RWMutex over a set is enough.
type Memory struct {
	mu  sync.RWMutex
	ips map[string]struct{}
}

var _ Store = (*Memory)(nil)

// NewMemory creates a store pre-populated with the given IPs.
func NewMemory(seed []string) *Memory {
	m := &Memory{ips: make(map[string]struct{}, len(seed))}
	for _, ip := range seed {
		if ip != "" {
			m.ips[ip] = struct{}{}
		}
	}
	return m
}

func (m *Memory) Contains(_ context.Context, ip string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ips[ip]
	return ok, nil
}

func (m *Memory) Add(_ context.Context, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ips[ip] = struct{}{}
	return nil
}

func (m *Memory) Remove(_ context.Context, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ips, ip)
	return nil
}
