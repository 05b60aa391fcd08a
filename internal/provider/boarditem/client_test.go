package boarditem

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/config"
	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

type recordedQuery struct {
	Query     string
	Variables map[string]any
}

// graphqlStub records every mutation and answers from a canned response map
// keyed by a substring of the query text.
type graphqlStub struct {
	t         *testing.T
	calls     []recordedQuery
	responses map[string]any
}

func (g *graphqlStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "board-token" {
			g.t.Errorf("expected raw token auth header, got %q", r.Header.Get("Authorization"))
		}

		var req recordedQuery
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.t.Fatalf("failed to decode graphql request: %v", err)
		}
		g.calls = append(g.calls, req)

		for marker, data := range g.responses {
			if strings.Contains(req.Query, marker) {
				json.NewEncoder(w).Encode(map[string]any{"data": data})
				return
			}
		}
		g.t.Errorf("no canned response for query %q", req.Query)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (g *graphqlStub) callsMatching(marker string) []recordedQuery {
	var matched []recordedQuery
	for _, call := range g.calls {
		if strings.Contains(call.Query, marker) {
			matched = append(matched, call)
		}
	}
	return matched
}

func testConfig() config.BoardItemConfig {
	return config.BoardItemConfig{
		APIToken:       "board-token",
		BoardID:        "4412",
		GroupID:        "topics",
		StatusColumn:   "status",
		DateColumn:     "date4",
		PriorityColumn: "priority_1",
	}
}

func newStubbedClient(t *testing.T, responses map[string]any) (*Client, *graphqlStub) {
	stub := &graphqlStub{t: t, responses: responses}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	return New(cfg, 2*time.Second), stub
}

func TestCreateWritesColumnValuesInOneMutation(t *testing.T) {
	client, stub := newStubbedClient(t, map[string]any{
		"create_item": map[string]any{"create_item": map[string]string{"id": "9001"}},
	})

	id, err := client.Create(context.Background(), &task.Task{
		Description: "Draft launch checklist",
		Priority:    task.PriorityHighest,
		Deadline:    time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "9001" {
		t.Errorf("expected item id 9001, got %s", id)
	}

	creates := stub.callsMatching("create_item")
	if len(creates) != 1 {
		t.Fatalf("expected exactly one create mutation, got %d", len(creates))
	}
	vars := creates[0].Variables
	if vars["name"] != "Draft launch checklist" {
		t.Errorf("unexpected item name %v", vars["name"])
	}
	if vars["group"] != "topics" {
		t.Errorf("expected group id in variables, got %v", vars["group"])
	}

	var columns map[string]map[string]string
	if err := json.Unmarshal([]byte(vars["columns"].(string)), &columns); err != nil {
		t.Fatalf("column_values must be a JSON-encoded string: %v", err)
	}
	if columns["status"]["label"] != "Working on it" {
		t.Errorf("new items must start in the open status, got %v", columns["status"])
	}
	if columns["date4"]["date"] != "2026-10-15" {
		t.Errorf("expected deadline column 2026-10-15, got %v", columns["date4"])
	}
	if columns["priority_1"]["label"] != "Critical" {
		t.Errorf("expected priority label Critical, got %v", columns["priority_1"])
	}
}

func TestCreateNoBoardConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.BoardID = ""
	client := New(cfg, time.Second)

	_, err := client.Create(context.Background(), &task.Task{Description: "x"})
	if err == nil {
		t.Fatal("expected fail-fast error with no board configured")
	}
	if !strings.Contains(err.Error(), "no destination board") {
		t.Errorf("unexpected error: %v", err)
	}
}

// Structured fields travel as a single batched column write, and the rename
// travels as its own mutation. An update touching both must issue both.
func TestUpdateIssuesBatchedColumnsAndSeparateRename(t *testing.T) {
	client, stub := newStubbedClient(t, map[string]any{
		"change_multiple_column_values": map[string]any{"change_multiple_column_values": map[string]string{"id": "9001"}},
		"change_simple_column_value":    map[string]any{"change_simple_column_value": map[string]string{"id": "9001"}},
	})

	desc := "Draft launch checklist v2"
	deadline := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	priority := task.PriorityLow
	err := client.Update(context.Background(), "9001", provider.Fields{
		Description: &desc,
		Deadline:    &deadline,
		Priority:    &priority,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	batched := stub.callsMatching("change_multiple_column_values")
	if len(batched) != 1 {
		t.Fatalf("expected one batched column mutation, got %d", len(batched))
	}
	var columns map[string]map[string]string
	json.Unmarshal([]byte(batched[0].Variables["columns"].(string)), &columns)
	if len(columns) != 2 {
		t.Errorf("expected deadline and priority batched together, got %v", columns)
	}

	renames := stub.callsMatching("change_simple_column_value")
	if len(renames) != 1 {
		t.Fatalf("expected one rename mutation, got %d", len(renames))
	}
	if renames[0].Variables["name"] != desc {
		t.Errorf("unexpected rename value %v", renames[0].Variables["name"])
	}
}

func TestUpdateRenameOnlySkipsColumnWrite(t *testing.T) {
	client, stub := newStubbedClient(t, map[string]any{
		"change_simple_column_value": map[string]any{"change_simple_column_value": map[string]string{"id": "9001"}},
	})

	desc := "renamed"
	if err := client.Update(context.Background(), "9001", provider.Fields{Description: &desc}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if n := len(stub.callsMatching("change_multiple_column_values")); n != 0 {
		t.Errorf("rename-only update must not write columns, got %d column mutations", n)
	}
}

func TestCloseWritesDoneLabelAndNote(t *testing.T) {
	client, stub := newStubbedClient(t, map[string]any{
		"create_update":                 map[string]any{"create_update": map[string]string{"id": "u1"}},
		"change_multiple_column_values": map[string]any{"change_multiple_column_values": map[string]string{"id": "9001"}},
	})

	res := client.Close(context.Background(), "9001", "completed in standup")
	if !res.OK {
		t.Fatalf("expected close to succeed, got %+v", res)
	}

	if len(stub.callsMatching("create_update")) != 1 {
		t.Error("expected the completion note as an update")
	}
	batched := stub.callsMatching("change_multiple_column_values")
	if len(batched) != 1 {
		t.Fatalf("expected one column mutation, got %d", len(batched))
	}
	var columns map[string]map[string]string
	json.Unmarshal([]byte(batched[0].Variables["columns"].(string)), &columns)
	if columns["status"]["label"] != "Done" {
		t.Errorf("expected Done status label, got %v", columns["status"])
	}
}

func TestGraphQLErrorsSurfaceAsRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "InvalidBoardIdException: board not found"}},
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	client := New(cfg, time.Second)

	_, err := client.Create(context.Background(), &task.Task{Description: "x"})
	if err == nil {
		t.Fatal("expected error from GraphQL errors array")
	}
	if provider.IsTransient(err) {
		t.Error("GraphQL-level errors arrive over a healthy transport and are not transient")
	}
	if !strings.Contains(err.Error(), "InvalidBoardIdException") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

func TestCheckStatusNotConfigured(t *testing.T) {
	status := New(config.BoardItemConfig{}, time.Second).CheckStatus(context.Background())
	if !status.NotConfigured || status.Connected {
		t.Errorf("expected not-configured status, got %+v", status)
	}
}

func TestCheckStatusConnected(t *testing.T) {
	client, _ := newStubbedClient(t, map[string]any{
		"me {": map[string]any{"me": map[string]string{"name": "Sync Bot", "email": "bot@example.com"}},
	})

	status := client.CheckStatus(context.Background())
	if !status.Connected {
		t.Fatalf("expected connected, got %+v", status)
	}
	if status.Identity != "Sync Bot" {
		t.Errorf("expected identity 'Sync Bot', got %q", status.Identity)
	}
}

func TestDelete(t *testing.T) {
	client, stub := newStubbedClient(t, map[string]any{
		"delete_item": map[string]any{"delete_item": map[string]string{"id": "9001"}},
	})

	res := client.Delete(context.Background(), "9001")
	if !res.OK {
		t.Fatalf("expected delete to succeed, got %+v", res)
	}
	if len(stub.callsMatching("delete_item")) != 1 {
		t.Error("expected one delete mutation")
	}
}
