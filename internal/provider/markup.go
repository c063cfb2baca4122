package provider

import (
	"regexp"
	"strings"

	"github.com/codelens/codelens/pkg/types"
)

// MarkupProvider is the lightweight tree walker for markup documents that
// have no structure provider of their own. Element boundaries become symbol
// ranges and the opening tag's attribute string becomes the node detail.
type MarkupProvider struct{}

// NewMarkupProvider creates a new MarkupProvider instance.
func NewMarkupProvider() *MarkupProvider {
	return &MarkupProvider{}
}

func (p *MarkupProvider) Name() string { return "markup" }

var (
	openTagRe  = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9:-]*)((?:\s+[^<>]*?)?)(/?)>`)
	closeTagRe = regexp.MustCompile(`</([A-Za-z][A-Za-z0-9:-]*)\s*>`)
)

// voidTags never have closing tags in HTML.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

type openElement struct {
	node types.SymbolNode
	tag  string
}

// Symbols scans the document line by line, pairing opening and closing tags
// into nested element nodes. Unbalanced markup degrades gracefully: an
// unmatched closing tag is ignored and elements still open at EOF are
// closed at the last line.
func (p *MarkupProvider) Symbols(filePath string, content []byte) ([]types.SymbolNode, error) {
	lines := strings.Split(string(content), "\n")

	var roots []types.SymbolNode
	var stack []openElement

	closeTop := func(endLine int) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top.node.Range.EndLine = endLine
		if len(stack) > 0 {
			parent := &stack[len(stack)-1]
			parent.node.Children = append(parent.node.Children, top.node)
		} else {
			roots = append(roots, top.node)
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		for _, ev := range tagEvents(line) {
			if ev.closing {
				// Pop to the matching open tag, tolerating skipped levels.
				for j := len(stack) - 1; j >= 0; j-- {
					if stack[j].tag == ev.tag {
						for len(stack) > j {
							closeTop(lineNo)
						}
						break
					}
				}
				continue
			}

			node := types.SymbolNode{
				Name:   ev.tag,
				Kind:   types.KindElement,
				Detail: ev.attrs,
				Range:  types.Range{StartLine: lineNo, EndLine: lineNo},
			}
			if ev.selfClosing || voidTags[strings.ToLower(ev.tag)] {
				if len(stack) > 0 {
					parent := &stack[len(stack)-1]
					parent.node.Children = append(parent.node.Children, node)
				} else {
					roots = append(roots, node)
				}
				continue
			}
			stack = append(stack, openElement{node: node, tag: ev.tag})
		}
	}

	for len(stack) > 0 {
		closeTop(len(lines))
	}

	return roots, nil
}

type tagEvent struct {
	tag         string
	attrs       string
	closing     bool
	selfClosing bool
	pos         int
}

// tagEvents returns the tag openings and closings on one line, in document
// order.
func tagEvents(line string) []tagEvent {
	var events []tagEvent

	for _, m := range closeTagRe.FindAllStringSubmatchIndex(line, -1) {
		events = append(events, tagEvent{
			tag:     line[m[2]:m[3]],
			closing: true,
			pos:     m[0],
		})
	}
	for _, m := range openTagRe.FindAllStringSubmatchIndex(line, -1) {
		ev := tagEvent{
			tag:         line[m[2]:m[3]],
			attrs:       strings.TrimSpace(line[m[4]:m[5]]),
			selfClosing: m[7] > m[6],
			pos:         m[0],
		}
		events = append(events, ev)
	}

	// Stable order by position in the line.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].pos < events[j-1].pos; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
	return events
}
