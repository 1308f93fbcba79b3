package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"adreact/internal/api"
)

// ErrReactionNotFound reports an unknown reaction identifier.
var ErrReactionNotFound = errors.New("reaction not found")

// ErrQueueJobNotFound reports an unknown queue job identifier.
var ErrQueueJobNotFound = errors.New("queue job not found")

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a client for the daemon at baseURL, e.g.
// "http://127.0.0.1:7523".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadReaction submits a recording and returns how it was routed.
func (c *Client) UploadReaction(ctx context.Context, recording io.Reader) (*api.UploadResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("recording", "reaction.mp4")
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, recording); err != nil {
		return nil, fmt.Errorf("buffer recording: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/reactions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.UploadResponse
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reaction fetches a reaction's current state.
func (c *Client) Reaction(ctx context.Context, reactionID string) (*api.ReactionView, error) {
	var resp api.ReactionResponse
	if err := c.get(ctx, "/api/reactions/"+reactionID, &resp); err != nil {
		if isNotFound(err) {
			return nil, ErrReactionNotFound
		}
		return nil, err
	}
	return &resp.Reaction, nil
}

// QueueJob fetches a queue job's current state.
func (c *Client) QueueJob(ctx context.Context, jobID int64) (*api.QueueItem, error) {
	var resp api.QueueItemResponse
	if err := c.get(ctx, fmt.Sprintf("/api/queue/%d", jobID), &resp); err != nil {
		if isNotFound(err) {
			return nil, ErrQueueJobNotFound
		}
		return nil, err
	}
	return &resp.Item, nil
}

// RetryQueueJob resets a failed job to pending.
func (c *Client) RetryQueueJob(ctx context.Context, jobID int64) (*api.QueueItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/queue/%d/retry", c.baseURL, jobID), nil)
	if err != nil {
		return nil, err
	}
	var resp api.QueueItemResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		if isNotFound(err) {
			return nil, ErrQueueJobNotFound
		}
		return nil, err
	}
	return &resp.Item, nil
}

// QueueList returns queue jobs, optionally filtered by statuses.
func (c *Client) QueueList(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		path += "?status=" + strings.Join(statuses, ",")
	}
	var resp api.QueueListResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ClearCompleted removes completed queue jobs and returns the count.
func (c *Client) ClearCompleted(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/queue", nil)
	if err != nil {
		return 0, err
	}
	var resp map[string]int64
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp["removed"], nil
}

// AdURL returns the current advertisement URL with its cache-busting
// token.
func (c *Client) AdURL(ctx context.Context) (*api.AdInfo, error) {
	var resp api.AdInfo
	if err := c.get(ctx, "/api/ad/url", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.get(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

// statusError carries a non-success HTTP status with the server's error
// message.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("daemon returned %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("daemon returned %d", e.status)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &statusError{status: resp.StatusCode, message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
