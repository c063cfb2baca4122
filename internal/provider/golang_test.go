package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/pkg/types"
)

func findNode(nodes []types.SymbolNode, name string) *types.SymbolNode {
	for i := range nodes {
		if nodes[i].Name == name {
			return &nodes[i]
		}
	}
	return nil
}

func TestGoSymbols_FunctionsAndTypes(t *testing.T) {
	src := `package demo

import "fmt"

// Pool manages reusable workers.
type Pool struct {
	size int
}

// NewPool builds an empty pool.
func NewPool(size int) *Pool {
	return &Pool{size: size}
}

func (p *Pool) Run() {
	fmt.Println(p.size)
}

type Runner interface {
	Run()
}

func helper() int {
	return 42
}
`

	p := NewGoProvider()
	roots, err := p.Symbols("demo.go", []byte(src))
	require.NoError(t, err)

	pool := findNode(roots, "Pool")
	require.NotNil(t, pool)
	assert.Equal(t, types.KindStruct, pool.Kind)

	// The method nests under its receiver and extends the type's range.
	run := findNode(pool.Children, "Run")
	require.NotNil(t, run)
	assert.Equal(t, types.KindMethod, run.Kind)
	assert.GreaterOrEqual(t, pool.Range.EndLine, run.Range.EndLine)

	ctor := findNode(roots, "NewPool")
	require.NotNil(t, ctor)
	assert.Equal(t, types.KindConstructor, ctor.Kind)

	iface := findNode(roots, "Runner")
	require.NotNil(t, iface)
	assert.Equal(t, types.KindInterface, iface.Kind)

	fn := findNode(roots, "helper")
	require.NotNil(t, fn)
	assert.Equal(t, types.KindFunction, fn.Kind)
}

func TestGoSymbols_ConstAndVarGroups(t *testing.T) {
	src := `package demo

const (
	ModeFast = "fast"
	ModeSlow = "slow"
)

var defaultTimeout = 30
`

	p := NewGoProvider()
	roots, err := p.Symbols("demo.go", []byte(src))
	require.NoError(t, err)

	group := findNode(roots, "ModeFast")
	require.NotNil(t, group)
	assert.Equal(t, types.KindConst, group.Kind)
	assert.Equal(t, 3, group.Range.StartLine)
	assert.Equal(t, 6, group.Range.EndLine)

	v := findNode(roots, "defaultTimeout")
	require.NotNil(t, v)
	assert.Equal(t, types.KindVar, v.Kind)
}

func TestGoSymbols_SyntaxErrorDegrades(t *testing.T) {
	src := `package demo

func ok() {
	x := 1
	_ = x
}

func broken( {
`

	p := NewGoProvider()
	roots, err := p.Symbols("demo.go", []byte(src))
	require.NoError(t, err)

	// The partial AST still yields the valid declaration.
	assert.NotNil(t, findNode(roots, "ok"))
}

func TestGoSymbols_GenericReceiver(t *testing.T) {
	src := `package demo

type List[T any] struct {
	items []T
}

func (l *List[T]) Append(v T) {
	l.items = append(l.items, v)
}
`

	p := NewGoProvider()
	roots, err := p.Symbols("demo.go", []byte(src))
	require.NoError(t, err)

	list := findNode(roots, "List")
	require.NotNil(t, list)
	require.NotNil(t, findNode(list.Children, "Append"))
}
