// Package backend is the HTTP client for the application backend: the REST
// service that owns user profiles and hackathon records.
//
// Every method maps one endpoint. Non-2xx answers become *apperror.AppError
// values wrapping apperror.ErrUpstream, with the status code and the server's
// "detail" message when it sent one. Transport failures wrap ErrUpstream too,
// with status 0.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/metrics"
	"github.com/sakif/hackhub/internal/model"
)

// maxBodyBytes caps how much of a response body we read.
const maxBodyBytes = 4 << 20

// Client talks to the application backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client for baseURL (e.g. "http://localhost:8000/api").
// httpClient may be nil, in which case http.DefaultClient is used and the
// transport's default timeouts apply.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// GetUser fetches the application profile for id.
func (c *Client) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), "get_user", nil)
	if err != nil {
		return nil, fmt.Errorf("backend: fetching user %s: %w", id, err)
	}

	var rec UserRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("backend: decoding user %s: %w", id, err)
	}
	return &rec, nil
}

// UpdateUser sends a partial profile update for id.
func (c *Client) UpdateUser(ctx context.Context, id string, update UserUpdate) error {
	if _, err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), "update_user", update); err != nil {
		return fmt.Errorf("backend: updating user %s: %w", id, err)
	}
	return nil
}

// SyncLogin asks the backend to ensure an application record exists for a
// freshly authenticated identity.
func (c *Client) SyncLogin(ctx context.Context, req SyncRequest) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", "sync_login", req); err != nil {
		return fmt.Errorf("backend: syncing login for %s: %w", req.ID, err)
	}
	return nil
}

// Register creates a new account. A rejected registration carries the
// server's detail message (see apperror.DetailOf).
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", "register", req); err != nil {
		return fmt.Errorf("backend: registering %s: %w", req.Email, err)
	}
	return nil
}

// ListHackathons returns the raw JSON array under "documents" of
// GET /hackathons. A missing array is returned as "[]".
func (c *Client) ListHackathons(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/hackathons", "list_hackathons", nil)
	if err != nil {
		return nil, fmt.Errorf("backend: listing hackathons: %w", err)
	}
	return rawArray(body, "documents"), nil
}

// ListUserHackathons returns the raw JSON array under "hackathons" of
// GET /users/{id}/hackathons.
func (c *Client) ListUserHackathons(ctx context.Context, userID string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/hackathons", "list_user_hackathons", nil)
	if err != nil {
		return nil, fmt.Errorf("backend: listing hackathons of user %s: %w", userID, err)
	}
	return rawArray(body, "hackathons"), nil
}

// OrganizerStats fetches the analytics of one hackathon.
func (c *Client) OrganizerStats(ctx context.Context, hackathonID string) (*model.OrganizerStats, error) {
	body, err := c.do(ctx, http.MethodGet, "/organizer/"+url.PathEscape(hackathonID)+"/stats", "organizer_stats", nil)
	if err != nil {
		return nil, fmt.Errorf("backend: fetching stats of hackathon %s: %w", hackathonID, err)
	}

	var resp organizerStatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("backend: decoding stats of hackathon %s: %w", hackathonID, err)
	}
	return &model.OrganizerStats{
		TotalRegistrants:    resp.TotalRegistrants,
		TeamsFormed:         resp.TeamsFormed,
		SubmissionsReceived: resp.SubmissionsReceived,
		LookingForTeam:      resp.LookingForTeam,
	}, nil
}

// do performs one JSON request and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path, operation string, payload any) ([]byte, error) {
	op := method + " " + path

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	done := metrics.TrackBackend(operation)
	resp, err := c.http.Do(req)
	if err != nil {
		done(0)
		return nil, fmt.Errorf("%w: %w", apperror.Upstream(op, 0, ""), err)
	}
	defer resp.Body.Close()
	done(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", apperror.Upstream(op, resp.StatusCode, ""), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("backend request rejected",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, apperror.Upstream(op, resp.StatusCode, errorDetail(body))
	}

	return body, nil
}

// errorDetail pulls the human-readable message out of an error body.
// The backend answers {"detail": "..."} for domain errors and
// {"detail": [{"msg": "..."}, ...]} for request validation errors.
func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return detail.String()
	case detail.IsArray():
		return detail.Get("0.msg").String()
	}
	return ""
}

// rawArray extracts the JSON array at path, or "[]" when it is absent.
func rawArray(body []byte, path string) json.RawMessage {
	res := gjson.GetBytes(body, path)
	if !res.IsArray() {
		return json.RawMessage("[]")
	}
	return json.RawMessage(res.Raw)
}
