// Package boardcard implements the provider adapter for card-board platforms
// (Trello-style REST with a bearer token). Cards have no structured status:
// completion is expressed by archiving the card.
package boardcard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/config"
	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

const defaultBaseURL = "https://api.trello.com/1"

// priorityBadges maps canonical priorities into the badge vocabulary rendered
// on the card. Unmapped values fall back to Medium.
var priorityBadges = map[string]string{
	task.PriorityLow:     "Low",
	task.PriorityMedium:  "Medium",
	task.PriorityHigh:    "High",
	task.PriorityHighest: "Urgent",
}

// Client is the board-card adapter.
type Client struct {
	cfg     config.BoardCardConfig
	baseURL string
	httpc   *http.Client
}

// New creates a board-card adapter with the given per-call timeout.
func New(cfg config.BoardCardConfig, timeout time.Duration) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return provider.NameBoardCard }

type memberResponse struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// CheckStatus probes GET /members/me.
func (c *Client) CheckStatus(ctx context.Context) provider.Status {
	status := provider.Status{Provider: c.Name()}
	if !c.cfg.Configured() {
		status.NotConfigured = true
		return status
	}

	body, err := c.do(ctx, http.MethodGet, "/members/me", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	var member memberResponse
	if err := json.Unmarshal(body, &member); err != nil {
		status.Error = fmt.Sprintf("unexpected member response: %v", err)
		return status
	}

	status.Connected = true
	status.Identity = member.FullName
	if status.Identity == "" {
		status.Identity = member.Username
	}
	return status
}

type cardPayload struct {
	IDList string `json:"idList,omitempty"`
	Name   string `json:"name,omitempty"`
	Desc   string `json:"desc,omitempty"`
	Due    string `json:"due,omitempty"`
	Closed *bool  `json:"closed,omitempty"`
}

type cardResponse struct {
	ID string `json:"id"`
}

// Create adds a card to the configured default list, failing fast when no
// destination list is configured.
func (c *Client) Create(ctx context.Context, t *task.Task) (string, error) {
	if !c.cfg.Configured() {
		return "", provider.ErrNotConfigured
	}
	if c.cfg.ListID == "" {
		return "", fmt.Errorf("boardcard: no destination list configured")
	}

	payload := cardPayload{
		IDList: c.cfg.ListID,
		Name:   t.Description,
		Desc:   c.cardDesc(t),
	}
	if !t.Deadline.IsZero() {
		payload.Due = t.Deadline.UTC().Format(time.RFC3339)
	}

	body, err := c.do(ctx, http.MethodPost, "/cards", payload)
	if err != nil {
		return "", err
	}

	var created cardResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("boardcard: unexpected create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("boardcard: create returned no card id")
	}
	return created.ID, nil
}

func (c *Client) cardDesc(t *task.Task) string {
	lines := []string{
		"Priority: " + c.priorityBadge(t.Priority),
		"Type: " + t.Type,
	}
	if t.Assignee != "" {
		lines = append(lines, "Owner: "+t.Assignee)
	}
	if t.SourceMeeting != "" {
		lines = append(lines, "From meeting: "+t.SourceMeeting)
	}
	return strings.Join(lines, "\n")
}

func (c *Client) priorityBadge(priority string) string {
	if badge, ok := priorityBadges[priority]; ok {
		return badge
	}
	log.Printf("Warning: boardcard has no mapping for priority %q, using Medium", priority)
	return "Medium"
}

// Update patches the supplied fields on an existing card.
func (c *Client) Update(ctx context.Context, externalID string, fields provider.Fields) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}

	patch := cardPayload{}
	changed := false
	if fields.Description != nil {
		patch.Name = *fields.Description
		changed = true
	}
	if fields.Deadline != nil {
		patch.Due = fields.Deadline.UTC().Format(time.RFC3339)
		changed = true
	}
	if fields.Priority != nil {
		patch.Desc = "Priority: " + c.priorityBadge(*fields.Priority)
		changed = true
	}
	if !changed {
		return nil
	}

	_, err := c.do(ctx, http.MethodPut, "/cards/"+externalID, patch)
	return err
}

// AddComment posts a comment action on the card.
func (c *Client) AddComment(ctx context.Context, externalID, text string) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}
	_, err := c.do(ctx, http.MethodPost, "/cards/"+externalID+"/actions/comments", map[string]string{"text": text})
	return err
}

// Close archives the card after posting the completion note as a comment.
func (c *Client) Close(ctx context.Context, externalID, note string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}

	if note != "" {
		if err := c.AddComment(ctx, externalID, note); err != nil {
			log.Printf("Warning: boardcard completion note on %s failed: %v", externalID, err)
		}
	}

	closed := true
	if _, err := c.do(ctx, http.MethodPut, "/cards/"+externalID, cardPayload{Closed: &closed}); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

// Delete removes the card.
func (c *Client) Delete(ctx context.Context, externalID string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}
	if _, err := c.do(ctx, http.MethodDelete, "/cards/"+externalID, nil); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("boardcard: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("boardcard: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
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
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, provider.NewError(c.Name(), provider.KindForStatus(resp.StatusCode), method+" "+path, msg)
	}
	return body, nil
}
