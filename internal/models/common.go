package models

//nolint:gosec //file not handles sensitive data
const (
	MwAPIKeyHeader      = "X-API-Key"
	MwRequestIDHeader   = "X-Request-ID"
	MwAuthHeader        = "Authorization"
	MwBearerPrefix      = "Bearer "
	MwClientIDKey       = "client_id"
	MwContentTypeJSON   = "application/json"
	MwContentTypeHeader = "Content-Type"
)

type APIKey struct {
	Key      string `json:"key"`
	ClientID string `json:"client_id"`
}
