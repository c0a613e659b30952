package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultAccount is used when no account is configured.
	DefaultAccount = "default"

	// EnvClientID and EnvClientSecret name the OAuth client credentials.
	EnvClientID     = "SLOTWISE_GOOGLE_CLIENT_ID"
	EnvClientSecret = "SLOTWISE_GOOGLE_CLIENT_SECRET"

	outOfBand = "urn:ietf:wg:oauth:2.0:oob"
	cacheName = "slotwise"
)

var (
	// ErrNoToken is returned when no token is stored for an account.
	ErrNoToken = errors.New("no Google OAuth token found")

	accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// validateAccountName restricts account names to characters that are safe in
// a file name.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, '-' and '_' are allowed", account)
	}
	return nil
}

// getTokenFilePath returns the token file for account.
func getTokenFilePath(account string) string {
	return filepath.Join(userCacheDir(), cacheName, "google-"+account+".token")
}

// GetOAuthConfig returns the OAuth2 configuration for the Calendar API. The
// client credentials are read from the environment.
func GetOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		Endpoint:     google.Endpoint,
		RedirectURL:  outOfBand,
		Scopes:       DefaultOAuthScopes,
	}
}

// HasTokenForAccount reports whether a token file exists for account.
func HasTokenForAccount(account string) bool {
	if err := validateAccountName(account); err != nil {
		return false
	}
	_, err := os.Stat(getTokenFilePath(account))
	return err == nil
}

// HasToken reports whether a token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount(DefaultAccount)
}

// GetAuthURL returns the consent URL for account.
func GetAuthURL(account string) string {
	return GetOAuthConfig().AuthCodeURL("state-"+account, oauth2.AccessTypeOffline)
}

// SaveTokenForAccount exchanges an authorization code and stores the token.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}

	t, err := GetOAuthConfig().Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return writeToken(account, t)
}

func writeToken(account string, t *oauth2.Token) error {
	path := getTokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func readToken(account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for account %s", ErrNoToken, account)
		}
		return nil, err
	}

	var t oauth2.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	return &t, nil
}

// GetTokenSourceForAccount returns a refreshing token source for account.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	t, err := readToken(account)
	if err != nil {
		return nil, err
	}
	return GetOAuthConfig().TokenSource(ctx, t), nil
}

// GetAuthenticationErrorMessage explains how to authenticate account.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("Google OAuth token missing or invalid for account %q. Run 'slotwise auth --account %s' to authorize Calendar access.", account, account)
}

// NewHTTPClient returns an HTTP client authenticated by ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}

func userCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(os.Getenv("HOME"), "Library", "Caches")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return filepath.Join(os.TempDir(), "cache")
}
