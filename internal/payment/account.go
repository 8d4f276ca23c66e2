// Package payment implements the paid-access policy in front of the MCP
// endpoint: an HTTP middleware that demands a payment credential, and a
// per-call charge primitive that settles a price against the destination
// account through the ATXP accounts service.
package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultCurrency is the settlement currency when a Requirement names none.
const DefaultCurrency = "USDC"

// ErrInvalidConnection is returned when a connection string cannot be parsed.
var ErrInvalidConnection = errors.New("invalid ATXP connection string")

// Account is the payment destination described by an ATXP connection
// string. It is read-only for the life of the process.
type Account struct {
	ID      string
	Token   string
	BaseURL string
}

// ParseConnection parses a connection string of the form
// https://accounts.atxp.ai?connection_token=<token>&account_id=<id>.
func ParseConnection(conn string) (*Account, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidConnection)
	}

	u, err := url.Parse(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConnection, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidConnection)
	}

	q := u.Query()
	token := q.Get("connection_token")
	if token == "" {
		return nil, fmt.Errorf("%w: missing connection_token", ErrInvalidConnection)
	}
	accountID := q.Get("account_id")
	if accountID == "" {
		return nil, fmt.Errorf("%w: missing account_id", ErrInvalidConnection)
	}

	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(u.Path, "/")}
	return &Account{
		ID:      accountID,
		Token:   token,
		BaseURL: base.String(),
	}, nil
}

// String identifies the account without exposing its token.
func (a *Account) String() string {
	return fmt.Sprintf("atxp:%s@%s", a.ID, a.BaseURL)
}
