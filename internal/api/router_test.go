package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"turn-orchestrator/internal/config"
	"turn-orchestrator/internal/filestore"
	"turn-orchestrator/internal/indexer"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/orchestrator"
	"turn-orchestrator/internal/search"
	"turn-orchestrator/internal/store"
	"turn-orchestrator/internal/transcript"
	"turn-orchestrator/pkg/provider"
)

type fakeRegistry struct {
	adapters map[string]provider.Adapter
}

func (r *fakeRegistry) Adapter(name string) (provider.Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, store.Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		Providers: map[string]config.Provider{
			config.ProviderMock: {DefaultModelID: "mock-echo"},
		},
	}
	registry := &fakeRegistry{adapters: map[string]provider.Adapter{
		config.ProviderMock: provider.NewMockClient(0),
	}}

	dir := t.TempDir()
	fs, err := filestore.New(dir)
	require.NoError(t, err)

	idx := indexer.New(s, fs, 50, nil)
	searcher := search.NewFromStore(s, 100)
	writer := transcript.NewWriter(s, t.TempDir(), transcript.FormatMarkdown)
	orch := orchestrator.New(s, registry, cfg, writer, nil)

	return NewRouter(s, orch, searcher, fs, idx, writer, cfg, logging.WithComponent("api-test"))
}

func doRequest(r *Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealthReturnsOK(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleTurnNonStreamingReturnsResults(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"user_message": "hi",
		"target_models": []map[string]interface{}{
			{"provider": "mock", "model_id": "mock-echo"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "Echo: hi", resp.Results[0].Text)
}

func TestHandleTurnRejectsMissingUserMessage(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"target_models": []map[string]interface{}{{"provider": "mock", "model_id": "mock-echo"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTurnRejectsEmptyTargets(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"user_message":  "hi",
		"target_models": []map[string]interface{}{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetConversationReturns404ForUnknownID(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/conversations/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTurnThenGetConversationRoundTrips(t *testing.T) {
	r := newTestRouter(t)
	turnRec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"user_message": "hi",
		"target_models": []map[string]interface{}{
			{"provider": "mock", "model_id": "mock-echo"},
		},
	})
	require.Equal(t, http.StatusOK, turnRec.Code)
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(turnRec.Body.Bytes(), &resp))

	getRec := doRequest(r, http.MethodGet, "/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestHandleExportConversationMarkdown(t *testing.T) {
	r := newTestRouter(t)
	turnRec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"user_message":  "hi",
		"target_models": []map[string]interface{}{{"provider": "mock", "model_id": "mock-echo"}},
	})
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(turnRec.Body.Bytes(), &resp))

	rec := doRequest(r, http.MethodGet, "/conversations/"+resp.ConversationID+"/export?format=md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# Conversation")
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestHandleSetAutosaveTogglesFlag(t *testing.T) {
	r := newTestRouter(t)
	turnRec := doRequest(r, http.MethodPost, "/turn", map[string]interface{}{
		"user_message":  "hi",
		"target_models": []map[string]interface{}{{"provider": "mock", "model_id": "mock-echo"}},
	})
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(turnRec.Body.Bytes(), &resp))

	rec := doRequest(r, http.MethodPost, "/conversations/"+resp.ConversationID+"/autosave", map[string]interface{}{
		"enabled": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	conv, err := r.store.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.True(t, conv.AutosaveEnabled)
}

func TestHandleUploadFileThenSearchFindsIt(t *testing.T) {
	r := newTestRouter(t)
	projectID, err := r.store.DefaultProjectID(context.Background())
	require.NoError(t, err)

	uploadRec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/files", map[string]interface{}{
		"path":    "docs/hello.md",
		"content": "this file is indexable",
	})
	require.Equal(t, http.StatusCreated, uploadRec.Code)

	var uploaded map[string]interface{}
	require.NoError(t, json.Unmarshal(uploadRec.Body.Bytes(), &uploaded))
	fileID, _ := uploaded["id"].(string)
	require.NotEmpty(t, fileID)

	_, err = r.indexer.IndexFile(context.Background(), fileID)
	require.NoError(t, err)

	searchRec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/search", map[string]interface{}{
		"query": "indexable",
	})
	require.Equal(t, http.StatusOK, searchRec.Code)

	var searchResp search.Response
	require.NoError(t, json.Unmarshal(searchRec.Body.Bytes(), &searchResp))
	require.GreaterOrEqual(t, len(searchResp.Results), 1)
	require.Equal(t, "docs/hello.md", searchResp.Results[0].Path)
}

func TestHandleUploadFileRejectsPathEscape(t *testing.T) {
	r := newTestRouter(t)
	projectID, _ := r.store.DefaultProjectID(context.Background())

	rec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/files", map[string]interface{}{
		"path":    "../escape.md",
		"content": "x",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadFileAcceptsExactlyMaxBytes(t *testing.T) {
	r := newTestRouter(t)
	projectID, _ := r.store.DefaultProjectID(context.Background())

	rec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/files", map[string]interface{}{
		"path":    "docs/exact.md",
		"content": strings.Repeat("a", maxFileBytes),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleUploadFileRejectsOverMaxBytes(t *testing.T) {
	r := newTestRouter(t)
	projectID, _ := r.store.DefaultProjectID(context.Background())

	rec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/files", map[string]interface{}{
		"path":    "docs/too-big.md",
		"content": strings.Repeat("a", maxFileBytes+1),
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleDeleteFileRemovesSearchResults(t *testing.T) {
	r := newTestRouter(t)
	projectID, _ := r.store.DefaultProjectID(context.Background())

	uploadRec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/files", map[string]interface{}{
		"path":    "docs/bye.md",
		"content": "removable content",
	})
	var uploaded map[string]interface{}
	require.NoError(t, json.Unmarshal(uploadRec.Body.Bytes(), &uploaded))
	fileID, _ := uploaded["id"].(string)

	_, err := r.indexer.IndexFile(context.Background(), fileID)
	require.NoError(t, err)

	delRec := doRequest(r, http.MethodDelete, "/projects/"+projectID+"/files/"+fileID, nil)
	require.Equal(t, http.StatusNoContent, delRec.Code)

	searchRec := doRequest(r, http.MethodPost, "/projects/"+projectID+"/search", map[string]interface{}{
		"query": "removable",
	})
	var searchResp search.Response
	require.NoError(t, json.Unmarshal(searchRec.Body.Bytes(), &searchResp))
	require.Empty(t, searchResp.Results)
}

func TestHandlePreviewViewReturnsRenderedView(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(r, http.MethodPost, "/preview-view", map[string]interface{}{
		"provider":     "mock",
		"model_id":     "mock-echo",
		"user_message": "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp previewViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Messages)
	last := resp.Messages[len(resp.Messages)-1]
	require.Contains(t, last.Content, "hello there")
}
