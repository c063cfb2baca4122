package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/indexer"
	"github.com/codelens/codelens/internal/provider"
	"github.com/codelens/codelens/internal/retry"
	"github.com/codelens/codelens/internal/search"
	"github.com/codelens/codelens/internal/selector"
	"github.com/codelens/codelens/pkg/types"
)

// stubEmbedder returns fixed-size vectors without any provider round-trip.
type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (stubEmbedder) Provider() string { return "stub" }
func (stubEmbedder) Close() error     { return nil }

// stubBackend answers searches with canned results.
type stubBackend struct {
	results []types.SearchResult
	err     error
}

func (b *stubBackend) Search(ctx context.Context, req search.Request) ([]types.SearchResult, error) {
	return b.results, b.err
}

func newTestServer(t *testing.T, backend search.Backend) (*Server, corpus.Store) {
	t.Helper()
	store := corpus.NewMemoryStore()
	batcher := embedder.NewBatcher(stubEmbedder{}, embedder.BatcherConfig{
		BatchSize:   32,
		Parallelism: 1,
		Retry:       retry.Fixed(1, time.Millisecond),
	}, nil, nil)
	idx := indexer.New(provider.NewRegistry(), selector.New(),
		fingerprint.New(store), batcher, store, nil)
	if backend == nil {
		backend = &stubBackend{}
	}
	srv, err := NewServerWith(store, idx, backend, nil, nil)
	require.NoError(t, err)
	return srv, store
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultJSON decodes the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content should be text")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func mcpErrorCode(t *testing.T, err error) int {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	return mcpErr.Code
}

func TestHandleSearchCode(t *testing.T) {
	backend := &stubBackend{results: []types.SearchResult{
		{
			Chunk: types.Chunk{
				FilePath:    "/ws/users.go",
				StartLine:   10,
				EndLine:     20,
				Code:        "func ActiveUsers() {}",
				Name:        "ActiveUsers",
				Kind:        types.KindFunction,
				Fingerprint: "abc",
			},
			Score: 0.91,
			Rank:  1,
		},
	}}
	srv, _ := newTestServer(t, backend)

	result, err := srv.handleSearchCode(context.Background(),
		toolRequest("search_code", map[string]interface{}{"query": "active users"}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	assert.Equal(t, "active users", decoded["query"])
	assert.Equal(t, float64(1), decoded["total_results"])

	results := decoded["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, "/ws/users.go", first["file_path"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Equal(t, "ActiveUsers", first["name"])
}

func TestHandleSearchCode_EmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, err := srv.handleSearchCode(context.Background(),
		toolRequest("search_code", map[string]interface{}{}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErrorCode(t, err))
}

func TestHandleSearchCode_LimitOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, limit := range []float64{0, 101} {
		_, err := srv.handleSearchCode(context.Background(),
			toolRequest("search_code", map[string]interface{}{
				"query": "anything",
				"limit": limit,
			}))
		require.Error(t, err)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErrorCode(t, err))
	}
}

func TestHandleSearchCode_ThresholdOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, err := srv.handleSearchCode(context.Background(),
		toolRequest("search_code", map[string]interface{}{
			"query":     "anything",
			"threshold": 1.5,
		}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErrorCode(t, err))
}

func TestHandleSearchCode_BackendFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{err: errors.New("service down")})

	_, err := srv.handleSearchCode(context.Background(),
		toolRequest("search_code", map[string]interface{}{"query": "anything"}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeServiceFailure, mcpErrorCode(t, err))
}

func TestHandleIndexWorkspace(t *testing.T) {
	srv, store := newTestServer(t, nil)

	workspace := t.TempDir()
	source := `package demo

// Greet renders the welcome banner for a signed-in account.
func Greet(name string) string {
	if name == "" {
		name = "friend"
	}
	return "hello, " + name
}
`
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "greet.go"), []byte(source), 0o644))

	result, err := srv.handleIndexWorkspace(context.Background(),
		toolRequest("index_workspace", map[string]interface{}{"path": workspace}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	assert.Equal(t, true, decoded["indexed"])
	assert.Equal(t, float64(1), decoded["files_indexed"])
	assert.Equal(t, float64(1), decoded["chunks_embedded"])

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleIndexWorkspace_PathValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"relative path", map[string]interface{}{"path": "relative/dir"}},
		{"nonexistent path", map[string]interface{}{"path": "/does/not/exist"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.handleIndexWorkspace(context.Background(),
				toolRequest("index_workspace", tt.args))
			require.Error(t, err)
			assert.Equal(t, ErrorCodeInvalidParams, mcpErrorCode(t, err))
		})
	}
}

func TestHandleRegenerateEmbeddings(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	workspace := t.TempDir()
	source := `package demo

// Shutdown drains pending work before the process exits.
func Shutdown(pending []string) int {
	drained := 0
	for range pending {
		drained++
	}
	return drained
}
`
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "shutdown.go"), []byte(source), 0o644))

	_, err := srv.handleIndexWorkspace(context.Background(),
		toolRequest("index_workspace", map[string]interface{}{"path": workspace}))
	require.NoError(t, err)

	// Regeneration ignores fingerprint reuse and re-embeds everything.
	result, err := srv.handleRegenerateEmbeddings(context.Background(),
		toolRequest("regenerate_embeddings", map[string]interface{}{"path": workspace}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	assert.Equal(t, float64(1), decoded["chunks_embedded"])
	assert.Equal(t, float64(0), decoded["chunks_reused"])
}

func TestHandleServiceStatus(t *testing.T) {
	srv, store := newTestServer(t, nil)
	require.NoError(t, store.ReplaceFileChunks(context.Background(), "/ws/a.go", []types.Chunk{
		{FilePath: "/ws/a.go", StartLine: 1, EndLine: 3, Code: "x", Fingerprint: "f1"},
	}))

	result, err := srv.handleServiceStatus(context.Background(),
		toolRequest("service_status", map[string]interface{}{}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	corpusInfo := decoded["corpus"].(map[string]interface{})
	assert.Equal(t, float64(1), corpusInfo["chunks"])
	assert.Equal(t, float64(1), corpusInfo["files"])

	// No supervisor wired, so no service section.
	_, hasService := decoded["service"]
	assert.False(t, hasService)
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"empty", "", ErrPathRequired},
		{"relative", "some/dir", ErrPathNotAbsolute},
		{"nonexistent", "/definitely/not/here", ErrPathNotFound},
		{"file not dir", file, ErrNotDirectory},
		{"valid dir", dir, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParameterDefaults(t *testing.T) {
	args := map[string]interface{}{
		"flag":  true,
		"count": float64(7),
		"ratio": 0.35,
		"label": "x",
	}

	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.Equal(t, 7, getIntDefault(args, "count", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, 0.35, getFloatDefault(args, "ratio", 0.2))
	assert.Equal(t, 0.2, getFloatDefault(args, "missing", 0.2))
	assert.Equal(t, "x", getStringDefault(args, "label", "d"))
	assert.Equal(t, "d", getStringDefault(args, "missing", "d"))
}
