package values_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/values"
)

func TestCellAliasingSharesWrites(t *testing.T) {
	cell := values.NewCell(values.NewNumber(1))
	require.False(t, cell.IsShared())

	outer := values.NewSymbolTable()
	require.NoError(t, outer.Define("x", cell))

	// A closure capturing x marks the cell shared; a second table binding
	// the same cell models that capture.
	cell.MarkShared()
	inner := values.NewSymbolTable()
	require.NoError(t, inner.Define("captured_x", cell))
	require.True(t, cell.IsShared())

	cell.Set(values.NewNumber(42))
	outerCell, _ := outer.Lookup("x")
	innerCell, _ := inner.Lookup("captured_x")
	require.Equal(t, values.NewNumber(42), outerCell.Get())
	require.Equal(t, values.NewNumber(42), innerCell.Get(), "both aliases observe the write immediately")
}

func TestSymbolTableDefineRejectsDuplicate(t *testing.T) {
	t1 := values.NewSymbolTable()
	require.NoError(t, t1.Define("x", values.NewCell(values.NewNumber(1))))
	err := t1.Define("x", values.NewCell(values.NewNumber(2)))
	require.Error(t, err)
}

func TestSymbolTableRedefineOrDefineCreatesNewCell(t *testing.T) {
	tbl := values.NewSymbolTable()
	first := values.NewCell(values.NewNumber(1))
	require.NoError(t, tbl.Define("x", first))

	second := values.NewCell(values.NewNumber(2))
	tbl.RedefineOrDefine("x", second)

	cell, ok := tbl.Lookup("x")
	require.True(t, ok)
	require.Same(t, second, cell, "redefine must rebind the name to a fresh cell, not mutate the old one")
	require.Equal(t, values.NewNumber(1), first.Get(), "the earlier cell is untouched by redefinition")
	require.Equal(t, 1, tbl.Len(), "redefining an existing name must not grow the table")
}

func TestSymbolTableNamesPreservesDefinitionOrder(t *testing.T) {
	tbl := values.NewSymbolTable()
	require.NoError(t, tbl.Define("b", values.NewCell(values.NewNumber(0))))
	require.NoError(t, tbl.Define("a", values.NewCell(values.NewNumber(0))))
	require.NoError(t, tbl.Define("c", values.NewCell(values.NewNumber(0))))
	require.Equal(t, []string{"b", "a", "c"}, tbl.Names())
}

func TestSymbolTableLookupMiss(t *testing.T) {
	tbl := values.NewSymbolTable()
	_, ok := tbl.Lookup("missing")
	require.False(t, ok)
}
