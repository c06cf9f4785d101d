package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
)

const webhookTimeout = 5 * time.Second

// WebhookService forwards session changes to an external listener, such as
// the shell hosting the UI, so it can show "you have been signed out".
type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
	wg         sync.WaitGroup
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{Timeout: webhookTimeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

// Attach subscribes to store changes and returns the unsubscribe func.
func (s *WebhookService) Attach(store storage.SessionReader) func() {
	return store.Subscribe(func(change models.SessionChange) {
		s.NotifySessionChange(context.Background(), change)
	})
}

// NotifySessionChange posts the change in the background. It never blocks the
// caller, which is a store notification.
func (s *WebhookService) NotifySessionChange(ctx context.Context, change models.SessionChange) {
	if s.webhookURL == "" {
		return
	}

	event := models.NewSessionEvent(change, time.Now().UTC())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		payload, err := json.Marshal(event)
		if err != nil {
			s.log.Errorw("failed to marshal webhook payload", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create webhook request", "error", err)
			return
		}
		req.Header.Set(models.MwContentTypeHeader, models.MwContentTypeJSON)

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send webhook", "event", event.Event, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode, "event", event.Event)
		}
	}()
}

// Wait blocks until in-flight webhook posts finish.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}
