package selector

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/codelens/codelens/pkg/types"
)

// Config tunes the selection thresholds. The zero value is not usable; use
// DefaultConfig.
type Config struct {
	// MaxClassLines is the largest class-like node embedded whole. Larger
	// classes are expanded into per-member chunks instead.
	MaxClassLines int

	// MinLines is the smallest node worth embedding unless its kind is
	// high-value.
	MinLines int

	// OverlapTolerance is the fraction of the smaller chunk's size that two
	// chunks may share before the later candidate is dropped.
	OverlapTolerance float64

	// MaxChunkChars bounds extracted code; longer text is reduced to a
	// window of exactly this many characters centered on its midpoint.
	MaxChunkChars int

	// MaxContextChars caps the derived context string.
	MaxContextChars int

	// ContextCommentLines is how many comment lines immediately preceding
	// a node are pulled into its context.
	ContextCommentLines int
}

// DefaultConfig returns the selection thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MaxClassLines:       100,
		MinLines:            3,
		OverlapTolerance:    0.3,
		MaxChunkChars:       1000,
		MaxContextChars:     200,
		ContextCommentLines: 3,
	}
}

// Selector turns a symbol tree plus document text into a flat,
// non-overlapping list of embeddable chunks.
type Selector struct {
	cfg Config
}

// New creates a Selector with the default configuration.
func New() *Selector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Selector with explicit thresholds.
func NewWithConfig(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// candidate is a flattened symbol node with its ancestor chain.
type candidate struct {
	node      types.SymbolNode
	ancestors []types.SymbolNode
	name      string // display name, possibly class-prefixed
}

// Select produces the ordered chunk list for one document. Chunks come back
// sorted by start line, fingerprinted, without embeddings.
func (s *Selector) Select(filePath string, tree []types.SymbolNode, doc string) []types.Chunk {
	lines := strings.Split(doc, "\n")

	flat := flatten(tree, nil)
	kept := s.filter(flat, lines)
	accepted := s.sweep(kept)

	chunks := make([]types.Chunk, 0, len(accepted))
	for _, c := range accepted {
		code := s.extract(c.node.Range, lines)
		if code == "" {
			continue
		}
		chunk := types.Chunk{
			FilePath:  filePath,
			StartLine: c.node.Range.StartLine,
			EndLine:   c.node.Range.EndLine,
			Code:      code,
			Context:   s.buildContext(c, lines),
			Kind:      c.node.Kind,
			Name:      c.name,
		}
		chunk.ComputeFingerprint()
		chunks = append(chunks, chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})
	return chunks
}

// flatten walks the tree depth-first, pairing every node with its ancestor
// chain (outermost first).
func flatten(nodes []types.SymbolNode, ancestors []types.SymbolNode) []candidate {
	var out []candidate
	for _, n := range nodes {
		out = append(out, candidate{node: n, ancestors: ancestors, name: n.Name})
		if len(n.Children) > 0 {
			chain := append(append([]types.SymbolNode(nil), ancestors...), n)
			out = append(out, flatten(n.Children, chain)...)
		}
	}
	return out
}

// filter applies the size/significance rules and performs the fallback
// expansion of oversized class-like nodes into per-member candidates.
func (s *Selector) filter(flat []candidate, lines []string) []candidate {
	var kept []candidate
	for _, c := range flat {
		if c.node.Validate() != nil {
			continue
		}
		size := c.node.Range.Lines()

		if c.node.Kind.IsClassLike() || c.node.Kind == types.KindConstructor {
			if size <= s.cfg.MaxClassLines {
				kept = append(kept, c)
				continue
			}
			if c.node.Kind.IsClassLike() {
				kept = append(kept, s.expandClass(c)...)
			}
			continue
		}

		if size == 1 && isTrivialBinding(c.node, lines) {
			continue
		}
		if size < s.cfg.MinLines && !c.node.Kind.IsHighValue() {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// expandClass replaces an oversized class chunk with one candidate per
// significant member, prefixed with the class name. The expansion appends
// members past the size filter; the selector would rather embed a one-line
// method than lose the class entirely.
func (s *Selector) expandClass(class candidate) []candidate {
	chain := append(append([]types.SymbolNode(nil), class.ancestors...), class.node)
	var out []candidate
	for _, child := range class.node.Children {
		switch child.Kind {
		case types.KindMethod, types.KindConstructor, types.KindFunction:
			out = append(out, candidate{
				node:      child,
				ancestors: chain,
				name:      class.node.Name + "." + child.Name,
			})
		}
	}
	return out
}

// sweep enforces the non-overlap invariant: candidates are visited smallest
// first, and a candidate survives only if its overlap with every already
// accepted chunk stays below the tolerance fraction of the smaller of the
// two sizes. Measuring against the smaller chunk keeps a large node from
// swallowing an already accepted small one whole. The earlier, smaller
// chunk wins ties.
func (s *Selector) sweep(kept []candidate) []candidate {
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].node.Range.Lines() < kept[j].node.Range.Lines()
	})

	var accepted []candidate
	for _, c := range kept {
		size := c.node.Range.Lines()
		ok := true
		for _, a := range accepted {
			overlap := types.Overlap(
				c.node.Range.StartLine, c.node.Range.EndLine,
				a.node.Range.StartLine, a.node.Range.EndLine,
			)
			if overlap == 0 {
				continue
			}
			smaller := min(size, a.node.Range.Lines())
			if float64(overlap) > s.cfg.OverlapTolerance*float64(smaller) {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// extract returns the node's source text, reduced to a centered window when
// it exceeds the character budget.
func (s *Selector) extract(r types.Range, lines []string) string {
	start := r.StartLine - 1
	end := r.EndLine
	if start < 0 || start >= len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	text := strings.Join(lines[start:end], "\n")
	return CenteredWindow(text, s.cfg.MaxChunkChars)
}

// CenteredWindow returns text unchanged when it fits in maxChars, otherwise
// a window of maxChars bytes symmetric around the midpoint, shifted inward
// at either boundary. Both edges snap to rune starts so a multi-byte rune
// is never split; ASCII input always comes back at exactly maxChars.
func CenteredWindow(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	mid := len(text) / 2
	start := mid - maxChars/2
	if start < 0 {
		start = 0
	}
	if start+maxChars > len(text) {
		start = len(text) - maxChars
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := start + maxChars
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[start:end]
}

// buildContext derives the context string: the filtered ancestor name
// chain, markup attributes when present, and up to N immediately preceding
// comment lines, capped at the configured character budget.
func (s *Selector) buildContext(c candidate, lines []string) string {
	var parts []string

	if chain := filterAncestorNames(c.ancestors, c.node.Name); chain != "" {
		parts = append(parts, chain)
	}
	if c.node.Detail != "" {
		parts = append(parts, c.node.Detail)
	}
	if comments := precedingComments(lines, c.node.Range.StartLine, s.cfg.ContextCommentLines); comments != "" {
		parts = append(parts, comments)
	}

	context := strings.Join(parts, "\n")
	if len(context) > s.cfg.MaxContextChars {
		context = context[:s.cfg.MaxContextChars]
	}
	return context
}

// filterAncestorNames joins ancestor names outermost-first, dropping any
// ancestor whose name is already substring-contained in a more specific
// ancestor or the node's own name. This avoids redundant "Foo > FooBar"
// chains.
func filterAncestorNames(ancestors []types.SymbolNode, self string) string {
	var names []string
	for i, a := range ancestors {
		if a.Name == "" {
			continue
		}
		redundant := false
		for _, deeper := range ancestors[i+1:] {
			if deeper.Name != a.Name && strings.Contains(deeper.Name, a.Name) {
				redundant = true
				break
			}
		}
		if !redundant && self != a.Name && strings.Contains(self, a.Name) {
			redundant = true
		}
		if !redundant {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, " > ")
}

// commentPrefixes are the line starts recognized as comments when pulling
// context above a node.
var commentPrefixes = []string{"//", "#", "/*", "*", "<!--", "--", ";"}

// precedingComments collects up to max comment lines directly above
// startLine, in document order.
func precedingComments(lines []string, startLine, max int) string {
	var collected []string
	for i := startLine - 2; i >= 0 && len(collected) < max; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		if !isCommentLine(trimmed) {
			break
		}
		collected = append([]string{trimmed}, collected...)
	}
	return strings.Join(collected, "\n")
}

func isCommentLine(trimmed string) bool {
	for _, p := range commentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return strings.HasSuffix(trimmed, "*/")
}

// isTrivialBinding reports whether a single-line var/const node is a bare
// identifier binding with nothing semantically interesting to embed.
func isTrivialBinding(n types.SymbolNode, lines []string) bool {
	if n.Kind != types.KindVar && n.Kind != types.KindConst {
		return false
	}
	idx := n.Range.StartLine - 1
	if idx < 0 || idx >= len(lines) {
		return true
	}
	line := strings.TrimSpace(lines[idx])
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		// Declaration without initializer.
		return true
	}
	rhs := strings.TrimSpace(strings.Trim(line[eq+1:], ";"))
	return isBareIdentifier(rhs)
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return true
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
