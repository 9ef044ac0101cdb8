// Package pos talks to the restaurant POS reporting API: token
// authentication, OLAP report queries and catalogue listings. The API is
// unreliable by nature, so most read paths degrade to empty results
// instead of failing; every degraded path emits a structured log event.
package pos

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxAttempts = 3

// Client wraps interactions with the POS reporting API.
type Client struct {
	baseURL    string
	login      string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	token string
}

// NewClient constructs a new client. Report aggregation queries can be
// slow on the POS side, so the timeout is generous.
func NewClient(baseURL, login, password string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		login:      login,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "pos")),
	}
}

// Token returns the cached session token, authenticating when needed.
// The API exchanges (login, SHA-1 hex of password) for a bare token
// string. Tokens never expire proactively; callers invalidate on 401.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	sum := sha1.Sum([]byte(c.password))
	form := url.Values{
		"login": {c.login},
		"pass":  {hex.EncodeToString(sum[:])},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("auth attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("auth returned status %d", resp.StatusCode)
			c.logger.Warn("auth attempt rejected",
				slog.Int("attempt", attempt),
				slog.Int("status", resp.StatusCode),
			)
			continue
		}
		token := strings.TrimSpace(string(body))
		if token == "" {
			lastErr = fmt.Errorf("auth returned empty token")
			continue
		}
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
		return token, nil
	}
	return "", fmt.Errorf("%w: %v", ErrAuthentication, lastErr)
}

// invalidateToken drops the cached token so the next call reauthenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// do executes one API call with the shared retry and status policy:
// 401 clears the token and retries, 400 fails immediately with the
// rejection text, 409 and empty bodies yield a nil payload, 5xx retries
// then surfaces ErrServer. The returned bytes are the raw body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload any) ([]byte, string, error) {
	reqID := uuid.NewString()
	logger := c.logger.With(
		slog.String("endpoint", endpoint),
		slog.String("request_id", reqID),
	)

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		body = encoded
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.Token(ctx)
		if err != nil {
			return nil, "", err
		}

		values := url.Values{}
		for k, vs := range query {
			values[k] = vs
		}
		values.Set("key", token)
		fullURL := c.baseURL + endpoint + "?" + values.Encode()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("request attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			logger.Warn("token rejected, reauthenticating", slog.Int("attempt", attempt))
			c.invalidateToken()
			lastErr = fmt.Errorf("unauthorized")
			continue
		case resp.StatusCode == http.StatusBadRequest:
			detail := snippet(respBody, 200)
			logger.Warn("bad request", slog.String("detail", detail))
			return nil, "", &BadRequestError{Endpoint: endpoint, Detail: detail}
		case resp.StatusCode == http.StatusConflict:
			// Endpoint not available on this installation; treat as no data.
			logger.Debug("endpoint unavailable (409)")
			return nil, "", nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			logger.Warn("server error",
				slog.Int("attempt", attempt),
				slog.Int("status", resp.StatusCode),
			)
			continue
		case resp.StatusCode >= 400:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		content := bytes.TrimSpace(respBody)
		if len(content) == 0 {
			// The API sometimes returns blank 200 responses.
			logger.Debug("empty response body")
			return nil, "", nil
		}
		return content, resp.Header.Get("Content-Type"), nil
	}
	return nil, "", fmt.Errorf("%w: %v", ErrServer, lastErr)
}

// Organizations lists organizational units. Best-effort: any failure
// degrades to an empty slice because the callers default to querying
// all organizations when the catalogue is unavailable.
func (c *Client) Organizations(ctx context.Context) []Row {
	rows := c.listCatalogue(ctx, "/corporation/departments",
		[]string{"corporateItemDto", "department", "item"},
		[]string{"departments", "organizations", "entities", "data"},
	)
	aliasIDs(rows)
	return rows
}

// Terminals lists POS terminals, best-effort like Organizations.
func (c *Client) Terminals(ctx context.Context) []Row {
	rows := c.listCatalogue(ctx, "/corporation/terminals",
		[]string{"terminal", "item", "terminalDto", "corporateItemDto"},
		[]string{"terminals", "data", "items"},
	)
	aliasIDs(rows)
	return rows
}

func (c *Client) listCatalogue(ctx context.Context, endpoint string, xmlTags, jsonKeys []string) []Row {
	query := url.Values{"revisionFrom": {"-1"}}
	body, contentType, err := c.do(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		c.logger.Debug("catalogue unavailable",
			slog.String("endpoint", endpoint),
			slog.Any("error", err),
		)
		return nil
	}
	if body == nil {
		return nil
	}
	rows := decodeRows(contentType, body, xmlTags, jsonKeys)
	if len(rows) == 0 {
		c.logger.Debug("catalogue response had no rows", slog.String("endpoint", endpoint))
	}
	return rows
}

// aliasIDs copies a known identifier field into "id" when the payload
// lacks one; downstream code keys exclusively on "id".
func aliasIDs(rows []Row) {
	if len(rows) == 0 {
		return
	}
	if _, ok := rows[0]["id"]; ok {
		return
	}
	for _, field := range []string{"departmentId", "entityId", "guid", "uuid", "corporateItemId", "terminalId"} {
		if _, ok := rows[0][field]; !ok {
			continue
		}
		for _, row := range rows {
			if v, ok := row[field]; ok {
				row["id"] = v
			}
		}
		return
	}
}

// snippet caps the rejection text at limit runes; the API answers in
// Russian, so byte slicing could split a character.
func snippet(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
