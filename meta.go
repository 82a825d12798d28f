package janusproxy

import (
	"errors"
	"sync"
)

const (
	MetaSessionData = "session_data"
	MetaRemoteAddr  = "remote_addr"
)

var (
	ErrMetaNotFound = errors.New("meta: metadata not found")
)

// Metadata holds per-connection values such as the client's opaque session data.
type Metadata struct {
	mu sync.RWMutex
	m  map[string]interface{}
}

func NewMetadata() *Metadata {
	return &Metadata{
		mu: sync.RWMutex{},
		m:  make(map[string]interface{}),
	}
}

func (m *Metadata) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.m[key] = value
}

func (m *Metadata) Get(key string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.m[key]
	if !ok {
		return nil, ErrMetaNotFound
	}

	return value, nil
}

// GetString returns the value for key when it is a string, or "".
func (m *Metadata) GetString(key string) string {
	value, err := m.Get(key)
	if err != nil {
		return ""
	}

	s, _ := value.(string)

	return s
}

// ForEach calls f for every entry while holding the read lock, so f must not modify m.
func (m *Metadata) ForEach(f func(key string, value interface{})) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for k, v := range m.m {
		f(k, v)
	}
}
