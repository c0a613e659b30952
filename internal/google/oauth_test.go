package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestValidateAccountName(t *testing.T) {
	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{"valid default", "default", false},
		{"valid work", "work", false},
		{"valid with hyphen", "work-email", false},
		{"valid with underscore", "personal_email", false},
		{"valid alphanumeric", "account123", false},
		{"empty", "", true},
		{"with spaces", "my account", true},
		{"with special chars", "account@work", true},
		{"with slash", "work/personal", true},
		{"with dot", "work.email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAccountName(tt.account)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetTokenFilePath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	assert.Equal(t, "google-default.token", filepath.Base(getTokenFilePath("default")))
	assert.Equal(t, "slotwise", filepath.Base(filepath.Dir(getTokenFilePath("work"))))
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	assert.False(t, HasTokenForAccount("work"))
	assert.False(t, HasTokenForAccount("invalid account"))
	assert.False(t, HasTokenForAccount(""))

	_, err := NewFileTokenProvider().GetTokenForAccount(context.Background(), "work")
	assert.ErrorIs(t, err, ErrNoToken)

	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, writeToken("work", tok))

	assert.True(t, HasTokenForAccount("work"))
	got, err := NewFileTokenProvider().GetTokenForAccount(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.Equal(t, HasTokenForAccount(DefaultAccount), HasToken())
}

func TestNewTokenSource_UsesStoredToken(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	tok := &oauth2.Token{AccessToken: "still-valid", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, writeToken(DefaultAccount, tok))

	ts, err := NewTokenSource(context.Background(), DefaultAccount, NewFileTokenProvider(), nil)
	require.NoError(t, err)

	got, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "still-valid", got.AccessToken, "unexpired tokens are not refreshed")

	_, err = NewTokenSource(context.Background(), DefaultAccount, nil, nil)
	assert.Error(t, err)
}

func TestGetAuthenticationErrorMessage(t *testing.T) {
	for _, account := range []string{"default", "work", "personal"} {
		msg := GetAuthenticationErrorMessage(account)
		assert.Contains(t, msg, account)
		assert.Contains(t, msg, "OAuth")
	}
}

func TestGetOAuthConfig(t *testing.T) {
	t.Setenv(EnvClientID, "client-id")
	conf := GetOAuthConfig()
	assert.Equal(t, "client-id", conf.ClientID)
	assert.Equal(t, DefaultOAuthScopes, conf.Scopes)
	assert.True(t, strings.Contains(GetAuthURL("work"), "client-id"))
}
