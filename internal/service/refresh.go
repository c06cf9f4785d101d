package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rryowa/medods_practice/internal/metrics"
	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/storage"
	"github.com/rryowa/medods_practice/internal/util"
)

const refreshKey = "session"

// RefreshCoordinator runs at most one refresh at a time. Callers that arrive
// while one is in flight wait on it and get its outcome.
type RefreshCoordinator struct {
	group      singleflight.Group
	refresher  TokenRefresher
	inspector  *TokenInspector
	store      storage.CredentialStore
	terminator SessionTerminator
	buffer     time.Duration
	timeout    time.Duration
	metrics    metrics.Recorder
	log        *zap.SugaredLogger
}

func NewRefreshCoordinator(
	cfg *util.GatewayConfig,
	refresher TokenRefresher,
	inspector *TokenInspector,
	store storage.CredentialStore,
	terminator SessionTerminator,
	rec metrics.Recorder,
	log *zap.SugaredLogger,
) *RefreshCoordinator {
	return &RefreshCoordinator{
		refresher:  refresher,
		inspector:  inspector,
		store:      store,
		terminator: terminator,
		buffer:     cfg.ExpiryBuffer,
		timeout:    cfg.RefreshTimeout,
		metrics:    rec,
		log:        log,
	}
}

// Refresh returns a usable session, starting a refresh or joining the one in
// flight. If the store already holds a live token other than staleToken, a
// refresh finished after the caller sent its request and that session is
// returned without a new cycle. If staleToken is set but the store is empty,
// the session ended after the caller sent its request and no cycle starts.
//
// A failed cycle has already logged the session out when Refresh returns;
// the error matches ErrSessionExpired. Cancelling ctx stops this caller's
// wait but not the shared refresh.
func (c *RefreshCoordinator) Refresh(ctx context.Context, staleToken string) (*models.Session, error) {
	gen := c.store.Generation()
	current := c.store.Read()
	if current == nil && staleToken != "" {
		return nil, fmt.Errorf("%w: session ended", ErrSessionExpired)
	}
	if current != nil && current.AccessToken != staleToken &&
		!c.inspector.IsExpiringWithin(current.AccessToken, c.buffer) {
		return current, nil
	}

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx), gen)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordRefreshJoined()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		session := *res.Val.(*models.Session)
		return &session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run performs one cycle. gen is the store generation the starting caller saw
// before deciding to refresh; if a logout or login lands after that, the
// cycle's result is dropped and no cascade fires.
func (c *RefreshCoordinator) run(ctx context.Context, gen uint64) (*models.Session, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	session, err := c.refreshSession(callCtx)
	if err != nil {
		c.metrics.RecordRefresh(metrics.RefreshFailure)
		if c.store.Generation() != gen {
			c.log.Infow("Session refresh failed after the session changed", "error", err)
			return c.superseded()
		}
		c.log.Warnw("Session refresh failed, logging out", "error", err, "elapsed", time.Since(started))
		c.terminator.Logout(ctx, models.LogoutReasonSessionExpired)
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if !c.store.WriteIf(gen, session, models.ChangeRefresh) {
		c.log.Infow("Refreshed session discarded, session changed during refresh", "userID", session.Identity.ID)
		return c.superseded()
	}
	c.metrics.RecordRefresh(metrics.RefreshSuccess)
	c.log.Infow("Session refreshed", "userID", session.Identity.ID, "expiresAt", session.ExpiresAt, "elapsed", time.Since(started))
	return session, nil
}

// superseded answers a cycle whose session changed under it: a login that
// landed meanwhile is handed to the waiters, a logout ends them.
func (c *RefreshCoordinator) superseded() (*models.Session, error) {
	if current := c.store.Read(); current != nil {
		return current, nil
	}
	return nil, fmt.Errorf("%w: session ended during refresh", ErrSessionExpired)
}

func (c *RefreshCoordinator) refreshSession(ctx context.Context) (*models.Session, error) {
	tokens, err := c.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	session, err := c.inspector.Decode(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decode refreshed token: %w", err)
	}
	return session, nil
}
