package types

import "errors"

// SymbolKind classifies a symbol tree node supplied by a structure provider.
type SymbolKind string

const (
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindConstructor SymbolKind = "constructor"
	KindType        SymbolKind = "type"
	KindConst       SymbolKind = "const"
	KindVar         SymbolKind = "var"
	KindField       SymbolKind = "field"
	KindElement     SymbolKind = "element" // markup tag/element
)

// IsClassLike reports whether the kind groups members the way a class does.
// Class-like nodes get the larger line budget and, when oversized, are
// expanded into per-member chunks instead of being embedded whole.
func (k SymbolKind) IsClassLike() bool {
	switch k {
	case KindClass, KindStruct, KindInterface, KindEnum:
		return true
	}
	return false
}

// IsHighValue reports whether a node of this kind is worth embedding even
// when it spans very few lines.
func (k SymbolKind) IsHighValue() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindClass, KindStruct, KindInterface:
		return true
	}
	return false
}

// Range is an inclusive 1-based line range within a document.
type Range struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// Lines returns the number of lines the range spans.
func (r Range) Lines() int {
	return r.EndLine - r.StartLine + 1
}

// SymbolNode is one node of the symbol tree handed to the chunk selector by
// a structure provider. The selector treats the tree as read-only input.
type SymbolNode struct {
	Name     string       `json:"name"`
	Kind     SymbolKind   `json:"kind"`
	Detail   string       `json:"detail,omitempty"` // e.g. markup attribute string
	Range    Range        `json:"range"`
	Children []SymbolNode `json:"children,omitempty"`
}

// Validate checks the node's structural invariants.
func (n *SymbolNode) Validate() error {
	if n.Name == "" && n.Kind != KindElement {
		return errors.New("symbol name is required")
	}
	if n.Range.StartLine <= 0 || n.Range.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if n.Range.StartLine > n.Range.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	return nil
}
