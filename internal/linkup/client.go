// Package linkup implements the LibreLinkUp cloud API client: login,
// connections polling and the request conventions the service expects
// (product headers, bearer ticket, hashed account id).
package linkup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/libresync/libresync/internal/config"
	"github.com/libresync/libresync/internal/models"
)

const (
	loginPath       = "/llu/auth/login"
	connectionsPath = "/llu/connections"

	headerVersion   = "version"
	headerProduct   = "product"
	headerAccountID = "Account-Id"
)

// maxErrorBody caps how much of an error response is read back for
// diagnostics.
const maxErrorBody = 64 * 1024

// Client talks to one regional LibreLinkUp endpoint. Safe for concurrent
// use.
type Client struct {
	baseURL string
	version string
	product string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient builds a client from the linkup configuration. Requests are
// bounded by the configured timeout and throttled to the configured rate;
// the upstream service blocks clients that poll too aggressively.
func NewClient(cfg config.LinkUpConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		version: cfg.Version,
		product: cfg.Product,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RateBurst),
		log:     log,
	}
}

// AccountID derives the Account-Id header value: the lowercase hex
// SHA-256 digest of the account identifier, no separators.
func AccountID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with account credentials and returns the issued
// ticket and identity. A non-zero envelope status maps to *AuthError.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	c.setHeaders(req)

	result := &models.LoginResult{}
	if err := c.do(req, "login", result); err != nil {
		return nil, err
	}

	if result.Status != 0 {
		return nil, &AuthError{Op: "login", Status: result.Status, Message: apiMessage(result.Error)}
	}
	if result.Data == nil || result.Data.User == nil || result.Data.AuthTicket == nil {
		return nil, &ProtocolError{Op: "login", Err: fmt.Errorf("login payload missing user or ticket")}
	}
	return result, nil
}

// Connections fetches the followed connections with their latest
// readings. The response carries a rotated ticket in Ticket; callers must
// persist it, the presented one stops working.
func (c *Client) Connections(ctx context.Context, ticket *models.AuthTicket, userID string) (*models.ConnectionsResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+connectionsPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create connections request: %w", err)
	}
	c.setHeaders(req)
	if ticket != nil && ticket.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ticket.Token)
	}
	req.Header.Set(headerAccountID, AccountID(userID))

	result := &models.ConnectionsResult{}
	if err := c.do(req, "connections", result); err != nil {
		return nil, err
	}

	if result.Status != 0 {
		return nil, &AuthError{Op: "connections", Status: result.Status, Message: apiMessage(result.Error)}
	}
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerVersion, c.version)
	req.Header.Set(headerProduct, c.product)
}

// do runs the request and decodes a 2xx JSON body into result.
func (c *Client) do(req *http.Request, op string, result any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode/100 != 2:
		excerpt := readErrorBody(resp.Body)
		return &ProtocolError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", excerpt),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &ProtocolError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readErrorBody returns a bounded excerpt of an error response body.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(unreadable body)"
	}
	return string(body)
}

func apiMessage(e *models.APIError) string {
	if e == nil {
		return ""
	}
	return e.Message
}
