package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_FoldsConstants(t *testing.T) {
	b := NewBuilder("fold")
	sum := b.Add(b.Int(2), b.Mul(b.Int(3), b.Int(4)))
	b.Return(sum)
	g := b.Graph()

	assert.True(t, Canonicalize(g))
	DeadCodeElimination(g)
	require.NoError(t, Verify(g))

	ret := g.NodesOf(OpReturn)[0]
	v := g.Node(ret.Input(0))
	require.NotNil(t, v)
	require.True(t, v.IsConst())
	assert.Equal(t, int64(14), v.Value.Int())
	assert.Empty(t, g.NodesOf(OpAdd))
	assert.Empty(t, g.NodesOf(OpMul))
}

func TestCanonicalize_AlgebraicIdentities(t *testing.T) {
	b := NewBuilder("ident")
	x := b.Param("x", KindInt)
	b.Return(b.Mul(b.Add(x, b.Int(0)), b.Int(1)))
	g := b.Graph()

	Canonicalize(g)
	ret := g.NodesOf(OpReturn)[0]
	assert.Equal(t, x.ID(), ret.Input(0))
}

func TestCanonicalize_RemovesDecidedBranch(t *testing.T) {
	b := NewBuilder("branch")
	arr := b.ArrayParam("a", KindInt)
	b.If(b.Bool(true),
		func() { b.Store(arr, b.Int(0), b.Int(1)) },
		func() { b.Store(arr, b.Int(0), b.Int(2)) })
	b.Return(nil)
	g := b.Graph()

	Canonicalize(g)
	require.NoError(t, Verify(g))

	assert.Empty(t, g.NodesOf(OpIf))
	assert.Empty(t, g.NodesOf(OpMerge))
	assert.Empty(t, g.NodesOf(OpBegin))
	stores := g.NodesOf(OpStore)
	require.Len(t, stores, 1)
	assert.Equal(t, int64(1), g.Node(stores[0].Input(2)).Value.Int())
	assert.Equal(t, g.Start().ID(), stores[0].Pred())
}

func TestCanonicalize_CollapsesPhiOfDecidedBranch(t *testing.T) {
	b := NewBuilder("phi")
	v := b.IfValue(b.Bool(false),
		func() *Node { return b.Int(10) },
		func() *Node { return b.Int(20) })
	b.Return(v)
	g := b.Graph()

	Canonicalize(g)
	require.NoError(t, Verify(g))
	assert.Empty(t, g.NodesOf(OpPhi))
	ret := g.NodesOf(OpReturn)[0]
	assert.Equal(t, int64(20), g.Node(ret.Input(0)).Value.Int())
}

func TestCanonicalize_IsIdempotent(t *testing.T) {
	g := addOneGraph()
	Canonicalize(g)
	before := MustFingerprint(g)
	assert.False(t, Canonicalize(g))
	assert.Equal(t, before, MustFingerprint(g))
}

func TestDeadCodeElimination_RemovesUnusedValues(t *testing.T) {
	b := NewBuilder("dce")
	arr := b.ArrayParam("a", KindInt)
	unused := b.Load(arr, b.Int(3))
	b.Add(unused, b.Int(7))
	b.Return(nil)
	g := b.Graph()

	removed := DeadCodeElimination(g)
	assert.Equal(t, 5, removed, "add, load, both constants and the param")
	assert.Empty(t, g.NodesOf(OpLoad))
	assert.Len(t, g.Params, 1, "the declared signature survives")
	require.NoError(t, Verify(g))
}
