// Package appwrite is an identity.Provider over the Appwrite account REST API.
//
// Appwrite tracks the session with a cookie set by POST
// /account/sessions/email, so every Client owns a cookie jar and must not be
// shared between browser sessions.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/model"
)

const defaultLoginError = "Invalid credentials"

// Client talks to one Appwrite project on behalf of one browser session.
type Client struct {
	endpoint string
	project  string
	http     *http.Client
}

var _ identity.Provider = (*Client)(nil)

// New creates a Client with its own cookie jar. endpoint is the API root,
// e.g. "https://cloud.appwrite.io/v1".
func New(endpoint, projectID string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("appwrite: creating cookie jar: %w", err)
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		project:  projectID,
		http:     &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// Factory returns an identity.Factory producing a fresh Client per session.
func Factory(endpoint, projectID string, timeout time.Duration) identity.Factory {
	return func() (identity.Provider, error) {
		return New(endpoint, projectID, timeout)
	}
}

// account is the subset of the Appwrite user object we read.
type account struct {
	ID        string `json:"$id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"$createdAt"`
}

func (c *Client) CurrentSession(ctx context.Context) (model.Identity, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("appwrite: getting account: %w", err)
	}
	if status == http.StatusUnauthorized {
		return model.Identity{}, apperror.NotAuthenticated(errorMessage(body, "no active session"))
	}
	if status != http.StatusOK {
		return model.Identity{}, apperror.Upstream("GET /account", status, errorMessage(body, ""))
	}

	var acc account
	if err := json.Unmarshal(body, &acc); err != nil {
		return model.Identity{}, fmt.Errorf("appwrite: decoding account: %w", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, acc.CreatedAt)
	return model.Identity{
		ID:        acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
		CreatedAt: created,
	}, nil
}

func (c *Client) CreateSession(ctx context.Context, email, password string) error {
	payload := map[string]string{"email": email, "password": password}
	status, body, err := c.do(ctx, http.MethodPost, "/account/sessions/email", payload)
	if err != nil {
		return fmt.Errorf("appwrite: creating session: %w", err)
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusTooManyRequests:
		return apperror.InvalidCredentials(errorMessage(body, defaultLoginError))
	default:
		return apperror.Upstream("POST /account/sessions/email", status, errorMessage(body, ""))
	}
}

// DeleteSession ends the current session. A 401 means there was none, which
// counts as success.
func (c *Client) DeleteSession(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/account/sessions/current", nil)
	if err != nil {
		return fmt.Errorf("appwrite: deleting session: %w", err)
	}
	if status >= 300 && status != http.StatusUnauthorized {
		return apperror.Upstream("DELETE /account/sessions/current", status, errorMessage(body, ""))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Appwrite-Project", c.project)
	req.Header.Set("X-Appwrite-Response-Format", "1.5.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// errorMessage reads Appwrite's {"message": "..."} error body.
func errorMessage(body []byte, fallback string) string {
	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg
	}
	return fallback
}
