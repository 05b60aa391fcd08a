// Package issuetracker implements the provider adapter for Jira-style issue
// trackers: REST v2 with Basic auth (email + API token).
package issuetracker

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

const (
	issueType      = "Task"
	summaryMaxLen  = 240
	deadlineFormat = "2006-01-02"
)

// priorityNames maps the canonical priority vocabulary into the tracker's
// priority scheme. Unmapped values fall back to Medium.
var priorityNames = map[string]string{
	task.PriorityLow:     "Low",
	task.PriorityMedium:  "Medium",
	task.PriorityHigh:    "High",
	task.PriorityHighest: "Highest",
}

// closeTransitions are the transition names (or target states) accepted as
// "this closes the issue", compared case-insensitively.
var closeTransitions = map[string]bool{
	"done":    true,
	"close":   true,
	"closed":  true,
	"resolve": true,
}

// Client is the issue-tracker adapter. It holds credentials and a short-lived
// HTTP client, no other state.
type Client struct {
	cfg   config.IssueTrackerConfig
	httpc *http.Client
}

// New creates an issue-tracker adapter with the given per-call timeout.
func New(cfg config.IssueTrackerConfig, timeout time.Duration) *Client {
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return provider.NameIssueTracker }

type userResponse struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// CheckStatus probes GET /myself. Missing credentials are a normal
// disconnected state, not an error.
func (c *Client) CheckStatus(ctx context.Context) provider.Status {
	status := provider.Status{Provider: c.Name()}
	if !c.cfg.Configured() {
		status.NotConfigured = true
		return status
	}

	body, err := c.do(ctx, http.MethodGet, "/rest/api/2/myself", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		status.Error = fmt.Sprintf("unexpected identity response: %v", err)
		return status
	}

	status.Connected = true
	status.Identity = user.DisplayName
	if status.Identity == "" {
		status.Identity = user.EmailAddress
	}
	return status
}

type createRequest struct {
	Fields map[string]any `json:"fields"`
}

type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Create mirrors the task as a new issue. Assignment is attempted in three
// steps because many deployments reject assignment to users without a paid
// seat: create with the assignee set; on an assignment-shaped rejection strip
// the assignee and retry once; then attempt a separate post-creation
// assignment call whose failure is an expected outcome, logged at info level.
func (c *Client) Create(ctx context.Context, t *task.Task) (string, error) {
	if !c.cfg.Configured() {
		return "", provider.ErrNotConfigured
	}
	if c.cfg.ProjectKey == "" {
		return "", fmt.Errorf("issuetracker: no destination project configured")
	}

	fields := c.issueFields(t)
	if t.Assignee != "" {
		fields["assignee"] = map[string]string{"name": t.Assignee}
	}

	key, err := c.createIssue(ctx, fields)
	if err == nil {
		return key, nil
	}

	if t.Assignee == "" || !provider.IsAssignmentError(err) {
		return "", err
	}

	// Assignment-shaped rejection: strip the assignee and retry once.
	log.Printf("Warning: issuetracker rejected assignee %q at creation, retrying without: %v", t.Assignee, err)
	delete(fields, "assignee")
	key, err = c.createIssue(ctx, fields)
	if err != nil {
		return "", err
	}

	// Separate post-creation assignment attempt. A second assignment-shaped
	// failure here is expected on unlicensed tenants; the issue is still
	// considered successfully created.
	if assignErr := c.assign(ctx, key, t.Assignee); assignErr != nil {
		if provider.IsAssignmentError(assignErr) {
			log.Printf("issuetracker: could not assign %s to %q (no seat?), issue created unassigned", key, t.Assignee)
		} else {
			log.Printf("Warning: issuetracker post-creation assignment of %s failed: %v", key, assignErr)
		}
	}

	return key, nil
}

func (c *Client) createIssue(ctx context.Context, fields map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", createRequest{Fields: fields})
	if err != nil {
		return "", err
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("issuetracker: unexpected create response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("issuetracker: create returned no issue key")
	}
	return created.Key, nil
}

func (c *Client) assign(ctx context.Context, key, assignee string) error {
	_, err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+key+"/assignee", map[string]string{"name": assignee})
	return err
}

func (c *Client) issueFields(t *task.Task) map[string]any {
	fields := map[string]any{
		"project":   map[string]string{"key": c.cfg.ProjectKey},
		"summary":   summarize(t.Description),
		"issuetype": map[string]string{"name": issueType},
		"priority":  map[string]string{"name": c.priorityName(t.Priority)},
		"labels":    []string{t.Type},
	}

	desc := t.Description
	if t.SourceMeeting != "" {
		desc += "\n\nFrom meeting: " + t.SourceMeeting
	}
	fields["description"] = desc

	if !t.Deadline.IsZero() {
		fields["duedate"] = t.Deadline.Format(deadlineFormat)
	}
	return fields
}

func (c *Client) priorityName(priority string) string {
	if name, ok := priorityNames[priority]; ok {
		return name
	}
	log.Printf("Warning: issuetracker has no mapping for priority %q, using Medium", priority)
	return "Medium"
}

// Update applies the supplied fields to an existing issue.
func (c *Client) Update(ctx context.Context, externalID string, fields provider.Fields) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}

	patch := map[string]any{}
	if fields.Description != nil {
		patch["summary"] = summarize(*fields.Description)
		patch["description"] = *fields.Description
	}
	if fields.Deadline != nil {
		patch["duedate"] = fields.Deadline.Format(deadlineFormat)
	}
	if fields.Priority != nil {
		patch["priority"] = map[string]string{"name": c.priorityName(*fields.Priority)}
	}
	if len(patch) == 0 {
		return nil
	}

	_, err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+externalID, createRequest{Fields: patch})
	return err
}

// AddComment appends an audit note to the issue.
func (c *Client) AddComment(ctx context.Context, externalID, text string) error {
	if !c.cfg.Configured() {
		return provider.ErrNotConfigured
	}
	_, err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+externalID+"/comment", map[string]string{"body": text})
	return err
}

type transitionsResponse struct {
	Transitions []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		To   struct {
			Name string `json:"name"`
		} `json:"to"`
	} `json:"transitions"`
}

// Close resolves the issue via its state machine: there is no direct status
// field, so the valid transitions are discovered per issue and the first one
// matching the close vocabulary is applied. No matching transition is a
// non-throwing failure.
func (c *Client) Close(ctx context.Context, externalID, note string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}

	if note != "" {
		if err := c.AddComment(ctx, externalID, note); err != nil {
			log.Printf("Warning: issuetracker completion note on %s failed: %v", externalID, err)
		}
	}

	body, err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+externalID+"/transitions", nil)
	if err != nil {
		return provider.OpResult{Error: err.Error()}
	}

	var available transitionsResponse
	if err := json.Unmarshal(body, &available); err != nil {
		return provider.OpResult{Error: fmt.Sprintf("unexpected transitions response: %v", err)}
	}

	transitionID := ""
	for _, tr := range available.Transitions {
		if closeTransitions[strings.ToLower(tr.Name)] || closeTransitions[strings.ToLower(tr.To.Name)] {
			transitionID = tr.ID
			break
		}
	}
	if transitionID == "" {
		return provider.OpResult{Error: fmt.Sprintf("no done/close/resolve transition available on %s", externalID)}
	}

	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	if _, err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+externalID+"/transitions", payload); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

// Delete removes the issue.
func (c *Client) Delete(ctx context.Context, externalID string) provider.OpResult {
	if !c.cfg.Configured() {
		return provider.OpResult{Error: provider.ErrNotConfigured.Error()}
	}
	if _, err := c.do(ctx, http.MethodDelete, "/rest/api/2/issue/"+externalID, nil); err != nil {
		return provider.OpResult{Error: err.Error()}
	}
	return provider.OpResult{OK: true}
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("issuetracker: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("issuetracker: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

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
		return nil, provider.NewError(c.Name(), provider.KindForStatus(resp.StatusCode), method+" "+path, errorMessage(resp.StatusCode, body))
	}
	return body, nil
}

func errorMessage(code int, body []byte) string {
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil {
		parts := append([]string(nil), parsed.ErrorMessages...)
		for field, msg := range parsed.Errors {
			parts = append(parts, field+": "+msg)
		}
		if len(parts) > 0 {
			return fmt.Sprintf("HTTP %d: %s", code, strings.Join(parts, "; "))
		}
	}
	return fmt.Sprintf("HTTP %d: %s", code, strings.TrimSpace(string(body)))
}

func summarize(description string) string {
	summary := description
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx]
	}
	if len(summary) > summaryMaxLen {
		summary = summary[:summaryMaxLen]
	}
	return summary
}
