package provider

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/codelens/codelens/pkg/types"
)

// GoProvider builds symbol trees from Go source via AST parsing. Methods
// are nested under their receiver type's node so the selector sees the
// receiver as an ancestor.
type GoProvider struct{}

// NewGoProvider creates a new GoProvider instance.
func NewGoProvider() *GoProvider {
	return &GoProvider{}
}

func (p *GoProvider) Name() string { return "go" }

// Symbols parses the file and returns its declarations as a symbol tree.
// Syntax errors are non-fatal: whatever partial AST the parser produced is
// still walked, so a file mid-edit degrades to fewer symbols instead of
// failing the index run.
func (p *GoProvider) Symbols(filePath string, content []byte) ([]types.SymbolNode, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if file == nil {
		// Nothing salvageable; treat as zero symbols.
		_ = err
		return nil, nil
	}

	b := &treeBuilder{fset: fset}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			b.addFunc(d)
		case *ast.GenDecl:
			b.addGenDecl(d)
		}
	}
	return b.finish(), nil
}

// treeBuilder accumulates root nodes and attaches methods to their receiver
// type's node once all declarations have been seen.
type treeBuilder struct {
	fset    *token.FileSet
	roots   []types.SymbolNode
	typeIdx map[string]int // type name -> index into roots
	methods []pendingMethod
}

type pendingMethod struct {
	receiver string
	node     types.SymbolNode
}

func (b *treeBuilder) addFunc(d *ast.FuncDecl) {
	node := types.SymbolNode{
		Name:  d.Name.Name,
		Range: b.rangeOf(d),
	}

	if d.Recv != nil && len(d.Recv.List) > 0 {
		node.Kind = types.KindMethod
		b.methods = append(b.methods, pendingMethod{
			receiver: receiverTypeName(d.Recv.List[0].Type),
			node:     node,
		})
		return
	}

	node.Kind = types.KindFunction
	if strings.HasPrefix(d.Name.Name, "New") || strings.HasPrefix(d.Name.Name, "new") {
		node.Kind = types.KindConstructor
	}
	b.roots = append(b.roots, node)
}

func (b *treeBuilder) addGenDecl(d *ast.GenDecl) {
	switch d.Tok {
	case token.TYPE:
		for _, spec := range d.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			node := types.SymbolNode{
				Name:  ts.Name.Name,
				Kind:  typeKind(ts.Type),
				Range: b.rangeOf(d),
			}
			if b.typeIdx == nil {
				b.typeIdx = make(map[string]int)
			}
			b.typeIdx[ts.Name.Name] = len(b.roots)
			b.roots = append(b.roots, node)
		}
	case token.CONST, token.VAR:
		name := groupName(d)
		if name == "" {
			return
		}
		kind := types.KindVar
		if d.Tok == token.CONST {
			kind = types.KindConst
		}
		b.roots = append(b.roots, types.SymbolNode{
			Name:  name,
			Kind:  kind,
			Range: b.rangeOf(d),
		})
	}
}

// finish attaches collected methods under their receiver types. Methods
// whose receiver type lives in another file stay at the root.
func (b *treeBuilder) finish() []types.SymbolNode {
	for _, m := range b.methods {
		if idx, ok := b.typeIdx[m.receiver]; ok {
			b.roots[idx].Children = append(b.roots[idx].Children, m.node)
			if m.node.Range.EndLine > b.roots[idx].Range.EndLine {
				// The type node's range covers its methods so class-size
				// accounting sees the whole implementation.
				b.roots[idx].Range.EndLine = m.node.Range.EndLine
			}
			continue
		}
		b.roots = append(b.roots, m.node)
	}
	return b.roots
}

func (b *treeBuilder) rangeOf(node ast.Node) types.Range {
	return types.Range{
		StartLine: b.fset.Position(node.Pos()).Line,
		EndLine:   b.fset.Position(node.End()).Line,
	}
}

// receiverTypeName extracts the bare type name from a method receiver,
// unwrapping pointers and generic instantiations.
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

func typeKind(expr ast.Expr) types.SymbolKind {
	switch expr.(type) {
	case *ast.StructType:
		return types.KindStruct
	case *ast.InterfaceType:
		return types.KindInterface
	default:
		return types.KindType
	}
}

// groupName names a const/var group after its first declared identifier.
func groupName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok || len(vs.Names) == 0 {
			continue
		}
		return vs.Names[0].Name
	}
	return ""
}
