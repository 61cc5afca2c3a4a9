package taskclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskloom/taskloom/pkg/taskclient"
)

func TestSetFieldSendsPayloadAndToken(t *testing.T) {
	var (
		gotPath    string
		gotAuth    string
		gotPayload map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := taskclient.NewClient(server.URL, "secret", nil)

	err := client.SetField(context.Background(), "task-1", "status", "done")
	require.NoError(t, err)
	assert.Equal(t, "/internal/tasks/task-1/fields", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "status", gotPayload["field"])
	assert.Equal(t, "done", gotPayload["value"])
}

func TestGetSnapshotDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/tasks/task-1/snapshot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task": {"id": "task-1", "priority": "urgent"}}`))
	}))
	defer server.Close()

	client := taskclient.NewClient(server.URL, "", nil)

	snapshot, err := client.GetSnapshot(context.Background(), "task-1")
	require.NoError(t, err)

	task, ok := snapshot["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "urgent", task["priority"])
}

func TestDueWithinEncodesWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/tasks/due", r.URL.Path)
		assert.Equal(t, "24h0m0s", r.URL.Query().Get("within"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tasks": [{"id": "task-1"}, {"id": "task-2"}]}`))
	}))
	defer server.Close()

	client := taskclient.NewClient(server.URL, "", nil)

	tasks, err := client.DueWithin(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`task is archived`))
	}))
	defer server.Close()

	client := taskclient.NewClient(server.URL, "", nil)

	err := client.Assign(context.Background(), "task-1", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "task is archived")
}
