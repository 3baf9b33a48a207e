package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

func strPtr(s string) *string { return &s }

func testRequests() []*models.DataRequest {
	return []*models.DataRequest{
		{
			ID:                "req-own",
			Title:             "School readiness check",
			CreatedBy:         "aeo-1",
			CreatorRole:       models.RoleAEO,
			CreatorClusterID:  strPtr("cluster-1"),
			CreatorDistrictID: strPtr("district-1"),
			Status:            models.RequestActive,
		},
		{
			ID:                "req-assigned",
			Title:             "Attendance summary",
			CreatedBy:         "deo-1",
			CreatorRole:       models.RoleDEO,
			CreatorDistrictID: strPtr("district-1"),
			Status:            models.RequestActive,
			Assignees: []models.RequestAssignee{
				{ID: "as-1", RequestID: "req-assigned", UserID: "aeo-1", UserRole: models.RoleAEO},
			},
		},
		{
			ID:                "req-foreign",
			Title:             "Other district request",
			CreatedBy:         "deo-2",
			CreatorRole:       models.RoleDEO,
			CreatorDistrictID: strPtr("district-9"),
			Status:            models.RequestActive,
		},
	}
}

func newListServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/requests" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"requests": testRequests(),
			"total":    3,
		})
	}))
}

func TestRequestStore_ListRequests_Online(t *testing.T) {
	server := newListServer(t)
	defer server.Close()

	store, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)

	viewer := &models.User{ID: "aeo-1", Role: models.RoleAEO, ClusterID: strPtr("cluster-1")}

	requests, fromSnapshot, err := store.ListRequests(context.Background(), viewer)
	require.NoError(t, err)
	assert.False(t, fromSnapshot)
	assert.Len(t, requests, 3, "online reads return the server list as-is")
}

func TestRequestStore_ListRequests_SnapshotFallback(t *testing.T) {
	server := newListServer(t)
	dataDir := t.TempDir()

	store, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	viewer := &models.User{ID: "aeo-1", Role: models.RoleAEO, ClusterID: strPtr("cluster-1")}

	// Prime the snapshot while the server is reachable.
	_, _, err = store.ListRequests(context.Background(), viewer)
	require.NoError(t, err)

	// Take the server away; the snapshot must serve, filtered by visibility.
	server.Close()

	requests, fromSnapshot, err := store.ListRequests(context.Background(), viewer)
	require.NoError(t, err)
	assert.True(t, fromSnapshot)

	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}
	assert.ElementsMatch(t, []string{"req-own", "req-assigned"}, ids,
		"snapshot fallback shows only created or assigned requests, never the foreign district's")
}

func TestRequestStore_ListRequests_NoSnapshot(t *testing.T) {
	store, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)

	viewer := &models.User{ID: "aeo-1", Role: models.RoleAEO}

	_, _, err = store.ListRequests(context.Background(), viewer)
	assert.Error(t, err, "no server and no snapshot is a hard failure")
}

func TestRequestStore_SnapshotFallback_RoleChange(t *testing.T) {
	server := newListServer(t)
	dataDir := t.TempDir()

	store, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	viewer := &models.User{ID: "aeo-1", Role: models.RoleAEO, ClusterID: strPtr("cluster-1")}
	_, _, err = store.ListRequests(context.Background(), viewer)
	require.NoError(t, err)
	server.Close()

	// The same person demoted to teacher: own and assigned requests remain
	// visible, nothing more.
	demoted := &models.User{ID: "aeo-1", Role: models.RoleTeacher, SchoolID: strPtr("school-1")}
	requests, _, err := store.ListRequests(context.Background(), demoted)
	require.NoError(t, err)

	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}
	assert.ElementsMatch(t, []string{"req-own", "req-assigned"}, ids)
}

func TestRequestStore_GetRequest_SnapshotFallback(t *testing.T) {
	server := newListServer(t)
	store, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)

	viewer := &models.User{ID: "aeo-1", Role: models.RoleAEO, ClusterID: strPtr("cluster-1")}
	_, _, err = store.ListRequests(context.Background(), viewer)
	require.NoError(t, err)
	server.Close()

	request, fromSnapshot, err := store.GetRequest(context.Background(), viewer, "req-assigned")
	require.NoError(t, err)
	assert.True(t, fromSnapshot)
	assert.Equal(t, "Attendance summary", request.Title)

	_, _, err = store.GetRequest(context.Background(), viewer, "req-foreign")
	assert.Error(t, err, "requests outside the viewer's visibility are absent from the fallback")
}

func TestRequestStore_SubmitResponses_JournalsFailedWrites(t *testing.T) {
	dataDir := t.TempDir()

	store, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1",
		DataDir: dataDir,
	})
	require.NoError(t, err)

	payload := &validator.SubmitResponsesRequest{
		Responses: []validator.FieldResponseRequest{
			{FieldID: "field-1", Value: datatypes.JSON(`"42 students present"`)},
		},
	}

	err = store.SubmitResponses(context.Background(), "req-assigned", payload)
	assert.Error(t, err, "a journaled write is still a failed write from the caller's view")

	pending, err := store.PendingWrites()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestRequestStore_CreateRequest_JournalsFailedWrites(t *testing.T) {
	dataDir := t.TempDir()

	store, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1",
		DataDir: dataDir,
	})
	require.NoError(t, err)

	payload := &validator.RequestCreateRequest{
		Title: "Monthly enrollment figures",
		Fields: []validator.FieldDefRequest{
			{Name: "Enrolled students", Type: models.FieldNumber, Required: true},
		},
		AssigneeIDs: []string{"head-1"},
	}

	err = store.CreateRequest(context.Background(), payload)
	assert.Error(t, err, "a journaled create is still a failed write from the caller's view")

	pending, err := store.PendingWrites()
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the drafted request waits in the journal")

	// Bring a server up on the same data dir: the draft reaches it on replay.
	var gotMethod, gotPath, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		var body validator.RequestCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTitle = body.Title
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	online, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	replayed, err := online.ReplayJournal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/requests", gotPath)
	assert.Equal(t, "Monthly enrollment figures", gotTitle)
}

func TestRequestStore_UpdateAndDelete_JournalPreservesMethod(t *testing.T) {
	dataDir := t.TempDir()

	offline, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1",
		DataDir: dataDir,
	})
	require.NoError(t, err)

	require.Error(t, offline.UpdateRequest(context.Background(), "req-1",
		&validator.RequestUpdateRequest{Title: strPtr("Revised title")}))
	require.Error(t, offline.DeleteRequest(context.Background(), "req-2"))

	type call struct{ Method, Path string }
	var received []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	online, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	replayed, err := online.ReplayJournal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)
	assert.Equal(t, []call{
		{http.MethodPatch, "/api/v1/requests/req-1"},
		{http.MethodDelete, "/api/v1/requests/req-2"},
	}, received, "replay re-sends each write with its original verb, in order")
}

func TestRequestStore_ReplayJournal(t *testing.T) {
	dataDir := t.TempDir()

	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Queue two writes against a dead endpoint.
	offline, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1",
		DataDir: dataDir,
	})
	require.NoError(t, err)

	payload := &validator.SubmitResponsesRequest{
		Responses: []validator.FieldResponseRequest{
			{FieldID: "field-1", Value: datatypes.JSON(`"first"`)},
		},
	}
	require.Error(t, offline.SubmitResponses(context.Background(), "req-1", payload))
	require.Error(t, offline.SubmitResponses(context.Background(), "req-2", payload))

	// Same data dir, reachable server: the journal replays in order.
	online, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	replayed, err := online.ReplayJournal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)
	assert.Equal(t, []string{
		"/api/v1/requests/req-1/responses",
		"/api/v1/requests/req-2/responses",
	}, received)

	pending, err := online.PendingWrites()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRequestStore_ReplayJournal_PartialFailure(t *testing.T) {
	dataDir := t.TempDir()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	offline, err := NewRequestStore(Config{
		BaseURL: "http://127.0.0.1:1",
		DataDir: dataDir,
	})
	require.NoError(t, err)

	payload := &validator.SubmitResponsesRequest{
		Responses: []validator.FieldResponseRequest{
			{FieldID: "field-1", Value: datatypes.JSON(`"x"`)},
		},
	}
	require.Error(t, offline.SubmitResponses(context.Background(), "req-1", payload))
	require.Error(t, offline.SubmitResponses(context.Background(), "req-2", payload))

	online, err := NewRequestStore(Config{
		BaseURL: server.URL,
		DataDir: dataDir,
	})
	require.NoError(t, err)

	replayed, err := online.ReplayJournal(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, replayed)

	pending, err := online.PendingWrites()
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the failed entry stays queued")
}
