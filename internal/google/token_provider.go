package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens from disk files.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a new file-based token provider
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount retrieves a token from disk for the specified account
func (p *FileTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	return readToken(account)
}

// HasTokenForAccount checks if a token file exists for the specified account
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// NewTokenSource returns a refreshing token source for account that records
// refresh outcomes and writes refreshed tokens back to disk.
func NewTokenSource(ctx context.Context, account string, provider TokenProvider, metrics *instrumentation.Metrics) (oauth2.TokenSource, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	t, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	return &observedTokenSource{
		ctx:     ctx,
		base:    GetOAuthConfig().TokenSource(ctx, t),
		account: account,
		last:    t.AccessToken,
		metrics: metrics,
		logger:  logging.WithComponent(slog.Default(), "google"),
		persist: func(t *oauth2.Token) error {
			if _, ok := provider.(*FileTokenProvider); !ok {
				return nil
			}
			return writeToken(account, t)
		},
	}, nil
}

type observedTokenSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	account string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	persist func(*oauth2.Token) error

	mu   sync.Mutex
	last string
}

func (s *observedTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		result := instrumentation.OAuthResultFailure
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			result = instrumentation.OAuthResultExpired
		}
		s.metrics.RecordOAuthTokenRefresh(s.ctx, result)
		s.logger.Warn("oauth token refresh failed",
			slog.String("account", s.account),
			slog.String("result", result),
			logging.Err(err))
		return nil, err
	}

	s.mu.Lock()
	refreshed := t.AccessToken != s.last
	s.last = t.AccessToken
	s.mu.Unlock()

	if refreshed {
		s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultSuccess)
		s.logger.Debug("oauth token refreshed",
			slog.String("account", s.account),
			slog.String("access_token", logging.SanitizeToken(t.AccessToken)),
			slog.Time("expiry", t.Expiry))
		if err := s.persist(t); err != nil {
			return nil, fmt.Errorf("failed to store refreshed token for %s: %w", s.account, err)
		}
	}
	return t, nil
}
