package secrets

import (
	"context"
	"sync"
)

// MemoryProvider serves secrets from a map. Used by tests and local runs.
type MemoryProvider struct {
	mu      sync.RWMutex
	secrets map[string]string
	calls   int
}

// NewMemoryProvider copies secrets into a new provider.
func NewMemoryProvider(secrets map[string]string) *MemoryProvider {
	m := &MemoryProvider{secrets: make(map[string]string, len(secrets))}
	for k, v := range secrets {
		m.secrets[k] = v
	}
	return m
}

// Set stores or replaces a secret.
func (m *MemoryProvider) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[name] = value
}

// GetSecret returns the named secret or ErrSecretNotFound.
func (m *MemoryProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	v, ok := m.secrets[name]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

// Calls returns how many lookups were made.
func (m *MemoryProvider) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
