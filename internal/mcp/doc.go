// Package mcp implements the Model Context Protocol (MCP) server for
// CodeLens.
//
// The server exposes four tools to AI coding assistants:
//   - index_workspace: index a workspace into searchable code chunks
//   - search_code: rank indexed code against a natural language query
//   - regenerate_embeddings: rebuild every embedding from scratch
//   - service_status: report service lifecycle state and corpus statistics
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport, so all diagnostics
// go to stderr; stdout carries only protocol frames.
//
// # Tool: index_workspace
//
//	Request:
//	{
//	  "name": "index_workspace",
//	  "arguments": {
//	    "path": "/path/to/workspace",
//	    "exclude_pattern": "*_test.go,*.min.js",
//	    "force_reindex": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "files_indexed": 247,
//	  "chunks_selected": 1932,
//	  "chunks_embedded": 410,
//	  "chunks_reused": 1522,
//	  "duration_ms": 18250
//	}
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "query": "where are batch retries scheduled",
//	    "limit": 10,
//	    "threshold": 0.2,
//	    "include_pattern": "internal/*"
//	  }
//	}
//
// Results carry file path, line range, score, and the chunk text with its
// ancestor context.
package mcp
