package memory

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
)

type InMemoryAPIKeyManager struct {
	mu      sync.RWMutex
	apiKeys map[string]models.APIKey
}

// NewAPIKeyRepository seeds the repository with the keys local UI clients use.
func NewAPIKeyRepository(keys ...models.APIKey) *InMemoryAPIKeyManager {
	apiKeys := make(map[string]models.APIKey, len(keys))
	for _, k := range keys {
		if k.Key == "" {
			continue
		}
		apiKeys[k.Key] = k
	}
	return &InMemoryAPIKeyManager{
		apiKeys: apiKeys,
	}
}

func (m *InMemoryAPIKeyManager) GetAPIKey(_ context.Context, apiKey string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for stored, key := range m.apiKeys {
		if len(stored) == len(apiKey) && subtle.ConstantTimeCompare([]byte(stored), []byte(apiKey)) == 1 {
			return &key, nil
		}
	}

	return nil, storage.ErrAPIKeyNotFound
}

func (m *InMemoryAPIKeyManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.apiKeys)
}
