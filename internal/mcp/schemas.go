package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexWorkspaceTool returns the tool definition for index_workspace
func indexWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_workspace",
		Description: "Index a workspace into semantically searchable code chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the workspace root",
				},
				"exclude_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns for files to skip (e.g. '*_test.go,*.min.js')",
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed every chunk ignoring fingerprint reuse",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed code with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the code to find",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score (0.0-1.0)",
					"default":     0.2,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"include_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns; only matching files are searched",
				},
				"exclude_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns; matching files are skipped",
				},
			},
			Required: []string{"query"},
		},
	}
}

// regenerateEmbeddingsTool returns the tool definition for regenerate_embeddings
func regenerateEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "regenerate_embeddings",
		Description: "Rebuild every embedding in the corpus from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the workspace root",
				},
				"exclude_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns for files to skip",
				},
			},
			Required: []string{"path"},
		},
	}
}

// serviceStatusTool returns the tool definition for service_status
func serviceStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "service_status",
		Description: "Report the embedding service lifecycle state and corpus statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
