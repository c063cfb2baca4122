package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codelens/codelens/internal/indexer"
	"github.com/codelens/codelens/internal/search"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
	ErrorCodeServiceFailure = -32005 // Embedding service could not be reached
)

// handleIndexWorkspace handles the index_workspace tool invocation
func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := indexer.Options{
		ExcludePattern: getStringDefault(args, "exclude_pattern", ""),
		ForceAll:       getBoolDefault(args, "force_reindex", false),
	}

	stats, err := s.indexer.IndexWorkspace(ctx, path, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(statsResponse(stats))), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", search.DefaultMaxResults)
	if limit < 1 || limit > search.MaxResultsLimit {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("limit must be between 1 and %d", search.MaxResultsLimit),
			map[string]interface{}{
				"param": "limit",
				"value": limit,
			})
	}

	threshold := getFloatDefault(args, "threshold", search.DefaultThreshold)
	if threshold < 0 || threshold > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between 0.0 and 1.0", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	req := search.Request{
		Query:          query,
		MaxResults:     limit,
		Threshold:      threshold,
		IncludePattern: getStringDefault(args, "include_pattern", ""),
		ExcludePattern: getStringDefault(args, "exclude_pattern", ""),
	}

	results, err := s.backend.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeServiceFailure, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]interface{}{
			"rank":       r.Rank,
			"score":      r.Score,
			"file_path":  r.Chunk.FilePath,
			"line_start": r.Chunk.StartLine,
			"line_end":   r.Chunk.EndLine,
			"name":       r.Chunk.Name,
			"kind":       string(r.Chunk.Kind),
			"code":       r.Chunk.Code,
			"context":    r.Chunk.Context,
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": len(results),
		"results":       formatted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRegenerateEmbeddings handles the regenerate_embeddings tool invocation
func (s *Server) handleRegenerateEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := indexer.Options{
		ExcludePattern: getStringDefault(args, "exclude_pattern", ""),
		ForceAll:       true,
	}

	stats, err := s.indexer.IndexWorkspace(ctx, path, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "regeneration failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(statsResponse(stats))), nil
}

// handleServiceStatus handles the service_status tool invocation
func (s *Server) handleServiceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{}

	if s.sup != nil {
		h := s.sup.Handle()
		response["service"] = map[string]interface{}{
			"status":   string(h.Status),
			"address":  h.Addr,
			"pid":      h.PID,
			"degraded": h.Degraded,
		}
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read corpus statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}
	files, err := s.store.Files(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read corpus statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response["corpus"] = map[string]interface{}{
		"chunks": count,
		"files":  len(files),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// statsResponse converts indexing statistics to the wire response shape.
func statsResponse(stats *indexer.Statistics) map[string]interface{} {
	response := map[string]interface{}{
		"indexed":         true,
		"files_indexed":   stats.FilesIndexed,
		"files_failed":    stats.FilesFailed,
		"chunks_selected": stats.ChunksSelected,
		"chunks_embedded": stats.ChunksEmbedded,
		"chunks_reused":   stats.ChunksReused,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return response
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is an accessible directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
