// Package boarditem implements the provider adapter for item-board platforms
// (monday-style GraphQL). Structured fields live in board columns: updates are
// a single batched column-values write, and renaming the item is a second,
// independent mutation. Both must be issued to fully apply an update.
package boarditem

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

const defaultBaseURL = "https://api.monday.com/v2"

// Board status labels
const (
	statusOpen = "Working on it"
	statusDone = "Done"
)

// priorityLabels maps canonical priorities into the board's priority column
// labels. Unmapped values fall back to Medium.
var priorityLabels = map[string]string{
	task.PriorityLow:     "Low",
	task.PriorityMedium:  "Medium",
	task.PriorityHigh:    "High",
	task.PriorityHighest: "Critical",
}

// Client is the board-item adapter.
type Client struct {
	cfg     config.BoardItemConfig
	baseURL string
	httpc   *http.Client
}

// New creates a board-item adapter with the given per-call timeout.
func New(cfg config.BoardItemConfig, timeout time.Duration) *Client {
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
func (c *Client) Name() string { return provider.NameBoardItem }

// CheckStatus runs a minimal me query.
func (c *Client) CheckStatus(ctx context.Context) provider.Status {
	status := provider.Status{Provider: c.Name()}
	if !c.cfg.Configured() {
		status.NotConfigured = true
		return status
	}

	var result struct {
		Me struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"me"`
	}
	if err := c.query(ctx, `query { me { name email } }`, nil, &result); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Connected = true
	status.Identity = result.Me.Name
	if status.Identity == "" {
		status.Identity = result.Me.Email
	}
	return status
}

// Create adds an item to the configured board and group with its column
// values set in one write, failing fast when no board is configured.
func (c *Client) Create(ctx context.Context, t *task.Task) (string, error) {
	if !c.cfg.Configured() {
		return "", provider.ErrNotConfigured
	}
	if c.cfg.BoardID == "" {
		return "", fmt.Errorf("boarditem: no destination board configured")
	}

	columns := c.columnValues(statusOpen, t.Deadline, t.Priority)
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return "", fmt.Errorf("boarditem: failed to marshal column values: %w", err)
	}

	mutation := `mutation ($board: ID!, $group: String, $name: String!, $columns: JSON) {
		create_item(board_id: $board, group_id: $group, item_name: $name, column_values: $columns) { id }
	}`
	vars := map[string]any{
		"board":   c.cfg.BoardID,
		"name":    t.Description,
		"columns": string(columnsJSON),
	}
	if c.cfg.GroupID != "" {
		vars["group"] = c.cfg.GroupID
	}

	var result struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	if err := c.query(ctx, mutation, vars, &result); err != nil {
		return "", err
	}
	if result.CreateItem.ID == "" {
		return "", fmt.Errorf("boarditem: create returned no item id")
	}
	return result.CreateItem.ID, nil
}

// Update issues the batched column-values write for structured fields and,
// independently, the rename mutation when the description changed.
func (c *Client) Update(ctx context.Context, externalID string, fields provider.Fields) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}

	columns := map[string]any{}
	if fields.Deadline != nil && c.cfg.DateColumn != "" {
		columns[c.cfg.DateColumn] = dateValue(*fields.Deadline)
	}
	if fields.Priority != nil && c.cfg.PriorityColumn != "" {
		columns[c.cfg.PriorityColumn] = labelValue(c.priorityLabel(*fields.Priority))
	}
	if fields.Status != nil && c.cfg.StatusColumn != "" {
		label := statusOpen
		if *fields.Status == task.StatusCompleted {
			label = statusDone
		}
		columns[c.cfg.StatusColumn] = labelValue(label)
	}

	if len(columns) > 0 {
		if err := c.changeColumns(ctx, externalID, columns); err != nil {
			return err
		}
	}

	if fields.Description != nil {
		if err := c.rename(ctx, externalID, *fields.Description); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) changeColumns(ctx context.Context, externalID string, columns map[string]any) error {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("boarditem: failed to marshal column values: %w", err)
	}

	mutation := `mutation ($board: ID!, $item: ID!, $columns: JSON!) {
		change_multiple_column_values(board_id: $board, item_id: $item, column_values: $columns) { id }
	}`
	vars := map[string]any{
		"board":   c.cfg.BoardID,
		"item":    externalID,
		"columns": string(columnsJSON),
	}

	var result struct {
		Changed struct {
			ID string `json:"id"`
		} `json:"change_multiple_column_values"`
	}
	return c.query(ctx, mutation, vars, &result)
}

func (c *Client) rename(ctx context.Context, externalID, name string) error {
	mutation := `mutation ($board: ID!, $item: ID!, $name: String!) {
		change_simple_column_value(board_id: $board, item_id: $item, column_id: "name", value: $name) { id }
	}`
	vars := map[string]any{
		"board": c.cfg.BoardID,
		"item":  externalID,
		"name":  name,
	}

	var result struct {
		Changed struct {
			ID string `json:"id"`
		} `json:"change_simple_column_value"`
	}
	return c.query(ctx, mutation, vars, &result)
}

// AddComment posts an update on the item.
func (c *Client) AddComment(ctx context.Context, externalID, text string) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}

	mutation := `mutation ($item: ID!, $body: String!) {
		create_update(item_id: $item, body: $body) { id }
	}`
	vars := map[string]any{"item": externalID, "body": text}

	var result struct {
		CreateUpdate struct {
			ID string `json:"id"`
		} `json:"create_update"`
	}
	return c.query(ctx, mutation, vars, &result)
}

// Close writes the done label into the status column and posts the note as
// an update.
func (c *Client) Close(ctx context.Context, externalID, note string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}
	if c.cfg.StatusColumn == "" {
		return provider.OpResult{Error: "boarditem: no status column configured"}
	}

	if note != "" {
		if err := c.AddComment(ctx, externalID, note); err != nil {
			log.Printf("Warning: boarditem completion note on %s failed: %v", externalID, err)
		}
	}

	columns := map[string]any{c.cfg.StatusColumn: labelValue(statusDone)}
	if err := c.changeColumns(ctx, externalID, columns); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

// Delete removes the item.
func (c *Client) Delete(ctx context.Context, externalID string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}

	mutation := `mutation ($item: ID!) { delete_item(item_id: $item) { id } }`
	var result struct {
		DeleteItem struct {
			ID string `json:"id"`
		} `json:"delete_item"`
	}
	if err := c.query(ctx, mutation, map[string]any{"item": externalID}, &result); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

func (c *Client) columnValues(statusLabel string, deadline time.Time, priority string) map[string]any {
	columns := map[string]any{}
	if c.cfg.StatusColumn != "" {
		columns[c.cfg.StatusColumn] = labelValue(statusLabel)
	}
	if c.cfg.DateColumn != "" && !deadline.IsZero() {
		columns[c.cfg.DateColumn] = dateValue(deadline)
	}
	if c.cfg.PriorityColumn != "" {
		columns[c.cfg.PriorityColumn] = labelValue(c.priorityLabel(priority))
	}
	return columns
}

func (c *Client) priorityLabel(priority string) string {
	if label, ok := priorityLabels[priority]; ok {
		return label
	}
	log.Printf("Warning: boarditem has no mapping for priority %q, using Medium", priority)
	return "Medium"
}

func labelValue(label string) map[string]string {
	return map[string]string{"label": label}
}

func dateValue(deadline time.Time) map[string]string {
	return map[string]string{"date": deadline.UTC().Format("2006-01-02")}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query executes one GraphQL request and decodes data into out. GraphQL-level
// errors are classified as provider-semantic rejections since the transport
// succeeded.
func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	data, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("boarditem: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("boarditem: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return provider.NewError(c.Name(), provider.KindTransient, "query", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.NewError(c.Name(), provider.KindTransient, "query", err.Error())
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return provider.NewError(c.Name(), provider.KindForStatus(resp.StatusCode), "query", msg)
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("boarditem: failed to decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			messages[i] = e.Message
		}
		return provider.NewError(c.Name(), provider.KindRejected, "query", strings.Join(messages, "; "))
	}

	if out != nil && len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("boarditem: failed to decode data: %w", err)
		}
	}
	return nil
}
