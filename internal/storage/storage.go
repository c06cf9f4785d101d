package storage

import (
	"context"
	"errors"

	"github.com/rryowa/medods_practice/internal/models"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

type APIKeyRepository interface {
	GetAPIKey(ctx context.Context, apiKey string) (*models.APIKey, error)
}

// SessionReader is the read-only view handed to the gateway and to UI-facing code.
type SessionReader interface {
	Read() *models.Session
	// Subscribe callbacks run synchronously inside the write and must not
	// write to the store themselves.
	Subscribe(fn func(models.SessionChange)) (unsubscribe func())
}

// CredentialStore holds the current session. Only the session lifecycle and
// the refresh coordinator write to it.
type CredentialStore interface {
	SessionReader
	Write(session *models.Session, reason models.ChangeReason)
	Clear(reason models.ChangeReason)
	// Generation and WriteIf let a writer that started before a slow
	// operation drop its result if the session changed meanwhile.
	Generation() uint64
	WriteIf(gen uint64, session *models.Session, reason models.ChangeReason) bool
}
