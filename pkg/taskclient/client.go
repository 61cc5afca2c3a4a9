// Package taskclient implements the protocol collaborator interfaces over
// the task tracker's internal HTTP API. The worker uses it so automation
// actions mutate tasks through the same service that owns them.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to the task tracker's internal API. It implements
// protocol.TaskMutator, protocol.CommentService, protocol.Notifier and
// protocol.TaskQuerier.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given base URL. token is sent as a
// bearer token on every request.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("module", "task_client"),
	}
}

// SetField updates one field of a task.
func (c *Client) SetField(ctx context.Context, taskID, field string, value any) error {
	payload := map[string]any{"field": field, "value": value}

	return c.do(ctx, http.MethodPost, "/internal/tasks/"+taskID+"/fields", payload, nil)
}

// Assign sets the task's assignee.
func (c *Client) Assign(ctx context.Context, taskID, userID string) error {
	payload := map[string]any{"user_id": userID}

	return c.do(ctx, http.MethodPost, "/internal/tasks/"+taskID+"/assignee", payload, nil)
}

// GetSnapshot fetches the current task snapshot in the shape rules evaluate
// against.
func (c *Client) GetSnapshot(ctx context.Context, taskID string) (map[string]any, error) {
	var snapshot map[string]any

	err := c.do(ctx, http.MethodGet, "/internal/tasks/"+taskID+"/snapshot", nil, &snapshot)
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// AddComment appends a comment to a task.
func (c *Client) AddComment(ctx context.Context, taskID, authorID, text string) error {
	payload := map[string]any{"author_id": authorID, "text": text}

	return c.do(ctx, http.MethodPost, "/internal/tasks/"+taskID+"/comments", payload, nil)
}

// Notify sends a templated notification to a user.
func (c *Client) Notify(ctx context.Context, userID, template string, data map[string]any) error {
	payload := map[string]any{"user_id": userID, "template": template, "data": data}

	return c.do(ctx, http.MethodPost, "/internal/notifications", payload, nil)
}

// DueWithin lists snapshots of open tasks due within the window.
func (c *Client) DueWithin(ctx context.Context, window time.Duration) ([]map[string]any, error) {
	var response struct {
		Tasks []map[string]any `json:"tasks"`
	}

	path := "/internal/tasks/due?within=" + window.String()

	err := c.do(ctx, http.MethodGet, path, nil, &response)
	if err != nil {
		return nil, err
	}

	return response.Tasks, nil
}

// Overdue lists snapshots of open tasks whose due date has passed.
func (c *Client) Overdue(ctx context.Context) ([]map[string]any, error) {
	var response struct {
		Tasks []map[string]any `json:"tasks"`
	}

	err := c.do(ctx, http.MethodGet, "/internal/tasks/overdue", nil, &response)
	if err != nil {
		return nil, err
	}

	return response.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to task service failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("task service returned %d for %s %s: %s", resp.StatusCode, method, path, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode task service response: %w", err)
	}

	return nil
}
