package provider

import (
	"path/filepath"
	"strings"

	"github.com/codelens/codelens/pkg/types"
)

// Provider supplies a symbol tree for a document. The editor's structure
// provider fills this role when the engine is embedded; the built-in
// providers cover standalone use.
type Provider interface {
	// Name identifies the provider in logs and statistics.
	Name() string

	// Symbols returns the root nodes of the symbol tree for the document.
	// A document the provider cannot make sense of contributes zero
	// symbols; that is not an error.
	Symbols(filePath string, content []byte) ([]types.SymbolNode, error)
}

// Registry maps file extensions to providers.
type Registry struct {
	byExt map[string]Provider
}

// NewRegistry returns a registry with the built-in providers registered:
// Go sources via AST parsing and markup documents via the tag walker.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Provider)}
	r.Register(NewGoProvider(), ".go")
	r.Register(NewMarkupProvider(), ".html", ".htm", ".xml", ".svelte", ".vue")
	return r
}

// Register associates a provider with one or more file extensions.
func (r *Registry) Register(p Provider, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForFile returns the provider for the file's extension, or nil when no
// provider covers it (the file then contributes zero chunks).
func (r *Registry) ForFile(path string) Provider {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// Extensions returns the set of extensions with a registered provider.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
