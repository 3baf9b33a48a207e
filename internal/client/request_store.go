package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/taleemhub/monitoring-service/internal/hierarchy"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// RequestStore is the field-officer client for the monitoring API. Reads fall
// back to the last synced snapshot when the server is unreachable, filtered by
// the same visibility rule the server applies. Writes that fail in the field
// are journaled locally for later replay and are never reported as remote
// successes.
type RequestStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	snapshotPath string
	journalPath  string
}

// Config configures a RequestStore.
type Config struct {
	BaseURL string
	Token   string

	// DataDir holds the snapshot and write journal. Required.
	DataDir string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type listEnvelope struct {
	Requests []*models.DataRequest `json:"requests"`
	Total    int                   `json:"total"`
}

type snapshot struct {
	SyncedAt time.Time             `json:"synced_at"`
	Requests []*models.DataRequest `json:"requests"`
}

// journalEntry is one failed write awaiting replay.
type journalEntry struct {
	QueuedAt time.Time       `json:"queued_at"`
	Method   string          `json:"method"`
	Path     string          `json:"path"`
	Body     json.RawMessage `json:"body"`
}

func NewRequestStore(cfg Config) (*RequestStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestStore{
		baseURL:      cfg.BaseURL,
		token:        cfg.Token,
		httpClient:   httpClient,
		logger:       logger,
		snapshotPath: filepath.Join(cfg.DataDir, "requests_snapshot.json"),
		journalPath:  filepath.Join(cfg.DataDir, "write_journal.jsonl"),
	}, nil
}

// ListRequests fetches the requests visible to the viewer. On transport
// failure it serves the local snapshot, re-applying the hierarchy visibility
// rule so a role change since the last sync never widens what the cache
// shows.
func (s *RequestStore) ListRequests(ctx context.Context, viewer *models.User) ([]*models.DataRequest, bool, error) {
	body, err := s.get(ctx, "/api/v1/requests")
	if err != nil {
		s.logger.Warn("request list fetch failed, serving snapshot", "error", err)
		requests, snapErr := s.loadSnapshot(viewer)
		if snapErr != nil {
			return nil, false, fmt.Errorf("fetch failed (%v) and no usable snapshot: %w", err, snapErr)
		}
		return requests, true, nil
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode request list: %w", err)
	}

	if err := s.saveSnapshot(envelope.Requests); err != nil {
		s.logger.Warn("failed to persist snapshot", "error", err)
	}

	return envelope.Requests, false, nil
}

// GetRequest fetches one request, falling back to the snapshot like
// ListRequests.
func (s *RequestStore) GetRequest(ctx context.Context, viewer *models.User, id string) (*models.DataRequest, bool, error) {
	body, err := s.get(ctx, "/api/v1/requests/"+id)
	if err != nil {
		s.logger.Warn("request fetch failed, serving snapshot", "request_id", id, "error", err)
		requests, snapErr := s.loadSnapshot(viewer)
		if snapErr != nil {
			return nil, false, fmt.Errorf("fetch failed (%v) and no usable snapshot: %w", err, snapErr)
		}
		for _, req := range requests {
			if req.ID == id {
				return req, true, nil
			}
		}
		return nil, true, fmt.Errorf("request %s not in snapshot", id)
	}

	var request models.DataRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, false, fmt.Errorf("failed to decode request: %w", err)
	}
	return &request, false, nil
}

// CreateRequest posts a new data request. A failed write is appended to the
// journal and the error is returned: a creator drafting in the field never
// loses the request, and never mistakes a queued write for a remote success.
func (s *RequestStore) CreateRequest(ctx context.Context, payload *validator.RequestCreateRequest) error {
	return s.writeOrJournal(ctx, http.MethodPost, "/api/v1/requests", payload)
}

// UpdateRequest patches an existing request, journaling on failure like
// CreateRequest.
func (s *RequestStore) UpdateRequest(ctx context.Context, requestID string, payload *validator.RequestUpdateRequest) error {
	return s.writeOrJournal(ctx, http.MethodPatch, "/api/v1/requests/"+requestID, payload)
}

// DeleteRequest deletes a request, journaling on failure like CreateRequest.
func (s *RequestStore) DeleteRequest(ctx context.Context, requestID string) error {
	return s.writeOrJournal(ctx, http.MethodDelete, "/api/v1/requests/"+requestID, nil)
}

// SubmitResponses posts the viewer's field responses, journaling on failure
// like the creator writes.
func (s *RequestStore) SubmitResponses(ctx context.Context, requestID string, payload *validator.SubmitResponsesRequest) error {
	return s.writeOrJournal(ctx, http.MethodPost, "/api/v1/requests/"+requestID+"/responses", payload)
}

// writeOrJournal sends one write to the server. On failure the write lands in
// the journal for later replay and the send error is still returned, so the
// caller always learns the write has not reached the server yet.
func (s *RequestStore) writeOrJournal(ctx context.Context, method, path string, payload interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
	}

	if err := s.send(ctx, method, path, body); err != nil {
		if journalErr := s.journal(journalEntry{
			QueuedAt: time.Now().UTC(),
			Method:   method,
			Path:     path,
			Body:     body,
		}); journalErr != nil {
			s.logger.Error("failed to journal write", "method", method, "path", path, "error", journalErr)
			return fmt.Errorf("write failed (%v) and journaling failed: %w", err, journalErr)
		}
		s.logger.Info("write journaled for replay", "method", method, "path", path)
		return fmt.Errorf("write failed, journaled for replay: %w", err)
	}

	return nil
}

// ReplayJournal retries every journaled write in order. Entries that succeed
// are dropped; the first failure stops the replay and keeps the remainder
// queued, preserving write order.
func (s *RequestStore) ReplayJournal(ctx context.Context) (int, error) {
	entries, err := s.loadJournal()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	replayed := 0
	for _, entry := range entries {
		if err := s.send(ctx, entry.Method, entry.Path, entry.Body); err != nil {
			if saveErr := s.saveJournal(entries[replayed:]); saveErr != nil {
				return replayed, fmt.Errorf("replay stopped (%v) and journal rewrite failed: %w", err, saveErr)
			}
			return replayed, fmt.Errorf("replay stopped at entry %d: %w", replayed, err)
		}
		replayed++
	}

	if err := s.saveJournal(nil); err != nil {
		return replayed, fmt.Errorf("failed to clear journal: %w", err)
	}
	return replayed, nil
}

// PendingWrites reports how many journaled writes await replay.
func (s *RequestStore) PendingWrites() (int, error) {
	entries, err := s.loadJournal()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ===== HTTP =====

func (s *RequestStore) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *RequestStore) send(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	_, err = s.do(req)
	return err
}

func (s *RequestStore) do(req *http.Request) ([]byte, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ===== SNAPSHOT =====

func (s *RequestStore) saveSnapshot(requests []*models.DataRequest) error {
	data, err := json.Marshal(snapshot{
		SyncedAt: time.Now().UTC(),
		Requests: requests,
	})
	if err != nil {
		return err
	}
	return atomicWrite(s.snapshotPath, data)
}

func (s *RequestStore) loadSnapshot(viewer *models.User) ([]*models.DataRequest, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot: %w", err)
	}

	visible := make([]*models.DataRequest, 0, len(snap.Requests))
	for _, req := range snap.Requests {
		assigneeIDs := make([]string, 0, len(req.Assignees))
		for _, a := range req.Assignees {
			assigneeIDs = append(assigneeIDs, a.UserID)
		}
		if hierarchy.CanView(viewer, req, assigneeIDs) {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// ===== JOURNAL =====

func (s *RequestStore) journal(entry journalEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.journalPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (s *RequestStore) loadJournal() ([]journalEntry, error) {
	data, err := os.ReadFile(s.journalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []journalEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var entry journalEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("corrupt journal: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RequestStore) saveJournal(entries []journalEntry) error {
	if len(entries) == 0 {
		if err := os.Remove(s.journalPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return atomicWrite(s.journalPath, buf.Bytes())
}

// atomicWrite replaces path contents via a temp file so a crash mid-write
// never leaves a truncated file behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
