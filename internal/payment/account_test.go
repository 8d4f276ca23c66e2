package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnection_Valid(t *testing.T) {
	acct, err := ParseConnection("https://accounts.atxp.ai?connection_token=tok_123&account_id=acct_456")
	require.NoError(t, err)

	assert.Equal(t, "acct_456", acct.ID)
	assert.Equal(t, "tok_123", acct.Token)
	assert.Equal(t, "https://accounts.atxp.ai", acct.BaseURL)
}

func TestParseConnection_KeepsPath(t *testing.T) {
	acct, err := ParseConnection("http://localhost:8080/atxp/?connection_token=t&account_id=a")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/atxp", acct.BaseURL)
}

func TestParseConnection_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no scheme":     "accounts.atxp.ai?connection_token=t&account_id=a",
		"ftp scheme":    "ftp://accounts.atxp.ai?connection_token=t&account_id=a",
		"missing token": "https://accounts.atxp.ai?account_id=a",
		"missing id":    "https://accounts.atxp.ai?connection_token=t",
	}
	for name, conn := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConnection(conn)
			assert.ErrorIs(t, err, ErrInvalidConnection)
		})
	}
}

func TestAccount_StringRedactsToken(t *testing.T) {
	acct := &Account{ID: "acct", Token: "super-secret", BaseURL: "https://accounts.atxp.ai"}
	assert.NotContains(t, acct.String(), "super-secret")
	assert.Contains(t, acct.String(), "acct")
}
