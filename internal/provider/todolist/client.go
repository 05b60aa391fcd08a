// Package todolist implements the provider adapter for Graph-style to-do
// lists (OAuth2 bearer tokens, JSON REST). Token acquisition and refresh are
// owned by the credential-store collaborator; this adapter only consumes an
// access token.
package todolist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/JoshuaSeidel/taskbridge/internal/config"
	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// importanceNames maps canonical priorities into the provider's importance
// vocabulary. Unmapped values fall back to normal.
var importanceNames = map[string]string{
	task.PriorityLow:     "low",
	task.PriorityMedium:  "normal",
	task.PriorityHigh:    "high",
	task.PriorityHighest: "high",
}

// Client is the to-do list adapter.
type Client struct {
	cfg     config.TodoListConfig
	baseURL string
	httpc   *http.Client
}

// New creates a to-do list adapter. The bearer token is wired through an
// oauth2 token source so the transport matches what the credential store
// hands out elsewhere in the product.
func New(cfg config.TodoListConfig, timeout time.Duration) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
	httpc.Timeout = timeout

	return &Client{cfg: cfg, baseURL: baseURL, httpc: httpc}
}

// Name returns the provider name.
func (c *Client) Name() string { return provider.NameTodoList }

type profileResponse struct {
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// CheckStatus probes GET /me.
func (c *Client) CheckStatus(ctx context.Context) provider.Status {
	status := provider.Status{Provider: c.Name()}
	if !c.cfg.Configured() {
		status.NotConfigured = true
		return status
	}

	body, err := c.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	var profile profileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		status.Error = fmt.Sprintf("unexpected profile response: %v", err)
		return status
	}

	status.Connected = true
	status.Identity = profile.DisplayName
	if status.Identity == "" {
		status.Identity = profile.UserPrincipalName
	}
	return status
}

type todoTask struct {
	Title       string        `json:"title,omitempty"`
	Body        *itemBody     `json:"body,omitempty"`
	Importance  string        `json:"importance,omitempty"`
	Status      string        `json:"status,omitempty"`
	DueDateTime *dateTimeZone `json:"dueDateTime,omitempty"`
}

type itemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type createResponse struct {
	ID string `json:"id"`
}

// Create mirrors the task into the configured default list. With no list
// configured the adapter fails fast rather than guessing a destination.
func (c *Client) Create(ctx context.Context, t *task.Task) (string, error) {
	if !c.cfg.Configured() {
		return "", provider.ErrNotConfigured
	}
	if c.cfg.ListID == "" {
		return "", fmt.Errorf("todolist: no task list configured")
	}

	payload := todoTask{
		Title:      t.Description,
		Importance: c.importance(t.Priority),
	}

	content := "Type: " + t.Type
	if t.Assignee != "" {
		content += "\nOwner: " + t.Assignee
	}
	if t.SourceMeeting != "" {
		content += "\nFrom meeting: " + t.SourceMeeting
	}
	payload.Body = &itemBody{Content: content, ContentType: "text"}

	if !t.Deadline.IsZero() {
		payload.DueDateTime = dueDate(t.Deadline)
	}

	body, err := c.do(ctx, http.MethodPost, c.tasksPath(), payload)
	if err != nil {
		return "", err
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("todolist: unexpected create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("todolist: create returned no task id")
	}
	return created.ID, nil
}

// Update patches the supplied fields on an existing to-do task.
func (c *Client) Update(ctx context.Context, externalID string, fields provider.Fields) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}

	patch := todoTask{}
	changed := false
	if fields.Description != nil {
		patch.Title = *fields.Description
		changed = true
	}
	if fields.Priority != nil {
		patch.Importance = c.importance(*fields.Priority)
		changed = true
	}
	if fields.Deadline != nil {
		patch.DueDateTime = dueDate(*fields.Deadline)
		changed = true
	}
	if !changed {
		return nil
	}

	_, err := c.do(ctx, http.MethodPatch, c.taskPath(externalID), patch)
	return err
}

// AddComment appends the note as a checklist item, the closest the provider
// offers to a free-form annotation that leaves structured fields alone.
func (c *Client) AddComment(ctx context.Context, externalID, text string) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}
	_, err := c.do(ctx, http.MethodPost, c.taskPath(externalID)+"/checklistItems", map[string]string{"displayName": text})
	return err
}

// Close marks the task completed, best-effort attaching the note first.
func (c *Client) Close(ctx context.Context, externalID, note string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}

	if note != "" {
		if err := c.AddComment(ctx, externalID, note); err != nil {
			log.Printf("Warning: todolist completion note on %s failed: %v", externalID, err)
		}
	}

	if _, err := c.do(ctx, http.MethodPatch, c.taskPath(externalID), todoTask{Status: "completed"}); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

// Delete removes the to-do task.
func (c *Client) Delete(ctx context.Context, externalID string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}
	if _, err := c.do(ctx, http.MethodDelete, c.taskPath(externalID), nil); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

func (c *Client) tasksPath() string {
	return "/me/todo/lists/" + c.cfg.ListID + "/tasks"
}

func (c *Client) taskPath(externalID string) string {
	return c.tasksPath() + "/" + externalID
}

func (c *Client) importance(priority string) string {
	if name, ok := importanceNames[priority]; ok {
		return name
	}
	log.Printf("Warning: todolist has no mapping for priority %q, using normal", priority)
	return "normal"
}

func dueDate(deadline time.Time) *dateTimeZone {
	return &dateTimeZone{
		DateTime: deadline.UTC().Format("2006-01-02T15:04:05"),
		TimeZone: "UTC",
	}
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("todolist: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("todolist: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, provider.NewError(c.Name(), provider.KindTransient, method+" "+path, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(c.Name(), provider.KindTransient, method+" "+path, err.Error())
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var gerr graphError
		if json.Unmarshal(body, &gerr) == nil && gerr.Error.Message != "" {
			msg = fmt.Sprintf("HTTP %d: %s (%s)", resp.StatusCode, gerr.Error.Message, gerr.Error.Code)
		}
		return nil, provider.NewError(c.Name(), provider.KindForStatus(resp.StatusCode), method+" "+path, msg)
	}
	return body, nil
}
