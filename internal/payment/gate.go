package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/drsullivan13/weather-server/internal/common"
)

// ProtectedResourcePath is where the gate publishes RFC 9728 metadata.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"

// Requirement is the price of a single tool invocation.
type Requirement struct {
	Price    decimal.Decimal
	Currency string
}

// Charger is the subset of the accounts service the gate settles through.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeReceipt, error)
	CreatePaymentRequest(ctx context.Context, in PaymentRequestInput) (*PaymentRequest, error)
}

// Gate enforces paid access: Middleware admits only requests carrying a
// verified payment credential and RequirePayment charges for each call.
type Gate struct {
	account  *Account
	payee    string
	verifier Verifier
	charger  Charger
	logger   *common.Logger
}

// NewGate creates a gate paying into account under the given payee name.
func NewGate(account *Account, payee string, verifier Verifier, charger Charger, logger *common.Logger) *Gate {
	return &Gate{
		account:  account,
		payee:    payee,
		verifier: verifier,
		charger:  charger,
		logger:   logger,
	}
}

// Middleware serves the protected resource metadata and rejects requests
// without a valid bearer credential. Admitted requests carry the Payer in
// their context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == ProtectedResourcePath {
			g.handleProtectedResource(w, r)
			return
		}

		credential, ok := bearerToken(r)
		if !ok {
			g.challenge(w, r, "unauthorized", "Payment credential required to access MCP endpoint")
			return
		}

		payer, err := g.verifier.Verify(r.Context(), credential)
		if err != nil {
			if !isCredentialRejection(err) {
				g.logger.Error().Str("error", err.Error()).Msg("payment credential verification unavailable")
				writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "Payment verification is unavailable")
				return
			}
			g.logger.Debug().Str("error", err.Error()).Msg("payment credential rejected")
			g.challenge(w, r, "invalid_token", "Payment credential is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPayer(r.Context(), payer)))
	})
}

// RequirePayment charges the request's payer for one invocation. It returns
// a *PaymentRequiredError when the charge cannot be settled.
func (g *Gate) RequirePayment(ctx context.Context, req Requirement) error {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if !req.Price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, req.Price.String())
	}

	payer, ok := PayerFromContext(ctx)
	if !ok {
		return &PaymentRequiredError{Amount: req.Price, Currency: currency, Err: ErrNoPayer}
	}

	charge := ChargeRequest{
		ID:          uuid.New().String(),
		Source:      payer.Subject,
		Destination: g.account.ID,
		PayeeName:   g.payee,
		Amount:      req.Price,
		Currency:    currency,
	}

	// The charge settles or fails on its own; a client going away must not
	// abort it halfway. The accounts client timeout still bounds it.
	chargeCtx := context.WithoutCancel(ctx)

	receipt, err := g.charger.Charge(chargeCtx, charge)
	if err == nil {
		g.logger.Info().
			Str("charge_id", receipt.ID).
			Str("payer", payer.Subject).
			Str("amount", req.Price.String()).
			Str("currency", currency).
			Msg("payment settled")
		return nil
	}

	perr := &PaymentRequiredError{Amount: req.Price, Currency: currency, Err: err}
	if errors.Is(err, ErrPaymentDeclined) {
		pr, prErr := g.charger.CreatePaymentRequest(chargeCtx, PaymentRequestInput{
			Source:      payer.Subject,
			Destination: g.account.ID,
			PayeeName:   g.payee,
			Amount:      req.Price,
			Currency:    currency,
		})
		if prErr != nil {
			g.logger.Warn().Str("error", prErr.Error()).Msg("failed to create payment request")
		} else {
			perr.RequestID = pr.ID
			perr.RequestURL = pr.URL
		}
	}

	g.logger.Warn().
		Str("payer", payer.Subject).
		Str("amount", req.Price.String()).
		Str("error", err.Error()).
		Msg("payment required")
	return perr
}

func (g *Gate) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metadata := map[string]interface{}{
		"resource":                 baseURLFromRequest(r) + "/",
		"resource_name":            g.payee,
		"authorization_servers":    []string{g.account.BaseURL},
		"bearer_methods_supported": []string{"header"},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	json.NewEncoder(w).Encode(metadata)
}

// challenge writes a 401 pointing the client at the resource metadata.
func (g *Gate) challenge(w http.ResponseWriter, r *http.Request, code, description string) {
	resourceMetadata := baseURLFromRequest(r) + ProtectedResourcePath
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer resource_metadata="%s"`, resourceMetadata))
	writeJSONError(w, http.StatusUnauthorized, code, description)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[7:])
	return token, token != ""
}

// baseURLFromRequest derives the external base URL from the request.
func baseURLFromRequest(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + sanitizeHost(r.Host)
}

// sanitizeHost strips CR, LF and quotes so the host cannot break out of
// the WWW-Authenticate header value.
func sanitizeHost(host string) string {
	host = strings.ReplaceAll(host, "\r", "")
	host = strings.ReplaceAll(host, "\n", "")
	host = strings.ReplaceAll(host, `"`, "")
	return host
}
