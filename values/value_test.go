package values_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/values"
)

// valueComparer diffs two Value slices using the language's own structural
// equality instead of field-by-field reflection, since ListValue/ClosureValue
// carry an unexported pool handle that differs even for equal values.
var valueComparer = cmp.Comparer(func(a, b values.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
})

func TestBoolEqual(t *testing.T) {
	require.True(t, values.NewBool(true).Equal(values.NewBool(true)))
	require.False(t, values.NewBool(true).Equal(values.NewBool(false)))
	require.False(t, values.NewBool(true).Equal(values.NewNumber(1)))
}

func TestNumberEqualNaN(t *testing.T) {
	nan := values.NewNumber(math.NaN())
	require.False(t, nan.Equal(nan), "NaN must never equal itself")
	require.True(t, values.NewNumber(1).Equal(values.NewNumber(1)))
	require.False(t, values.NewNumber(1).Equal(values.NewNumber(2)))
}

func TestNumberStringFormatting(t *testing.T) {
	require.Equal(t, "inf", values.NewNumber(math.Inf(1)).String())
	require.Equal(t, "-inf", values.NewNumber(math.Inf(-1)).String())
	require.Equal(t, "nan", values.NewNumber(math.NaN()).String())
	require.Equal(t, "3", values.NewNumber(3).String())
}

func TestStringEqualIsCaseInsensitive(t *testing.T) {
	a := values.NewString("Hello")
	b := values.NewString("hello")
	require.True(t, a.Equal(b))
	require.False(t, a.EqualCase(b))
	require.True(t, a.EqualCase(values.NewString("Hello")))
}

func TestStringParseNumber(t *testing.T) {
	cases := map[string]float64{
		"  42  ": 42,
		"-3.5":   -3.5,
		"inf":    math.Inf(1),
		"-inf":   math.Inf(-1),
	}
	for in, want := range cases {
		got, ok := values.ParseNumber(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	_, ok := values.ParseNumber("not a number")
	require.False(t, ok)
	_, ok = values.ParseNumber("")
	require.False(t, ok)

	n, ok := values.ParseNumber("nan")
	require.True(t, ok)
	require.True(t, math.IsNaN(n))
}

func TestListEqualDeepAndSelfContaining(t *testing.T) {
	pool := values.NewRefPool()
	a := pool.NewList([]values.Value{values.NewNumber(1), values.NewNumber(2)})
	b := pool.NewList([]values.Value{values.NewNumber(1), values.NewNumber(2)})
	require.True(t, a.Equal(b), "structurally equal lists with different handles must compare equal")

	// Self-containing list: push the list into itself, then compare it to
	// itself. Identity-first comparison on cycle elements must terminate.
	a.Push(a)
	require.True(t, a.Equal(a))

	c := pool.NewList([]values.Value{values.NewNumber(1), values.NewNumber(3)})
	require.False(t, a.Equal(c))
}

func TestListIdentityIsHandleBased(t *testing.T) {
	pool := values.NewRefPool()
	a := pool.NewList([]values.Value{values.NewNumber(1)})
	b := pool.NewList([]values.Value{values.NewNumber(1)})
	require.NotEqual(t, a.Identity(), b.Identity(), "distinct list handles must have distinct identities")
	require.Equal(t, a.Identity(), a.Identity())
}

func TestScalarIdentityIsContentDerived(t *testing.T) {
	require.Equal(t, values.NewNumber(5).Identity(), values.NewNumber(5).Identity())
	require.Equal(t, values.NewString("AbC").Identity(), values.NewString("abc").Identity(),
		"string identity folds case the same way Equal does")
}

func TestListOneBasedIndexing(t *testing.T) {
	pool := values.NewRefPool()
	lst := pool.NewList([]values.Value{values.NewNumber(10), values.NewNumber(20), values.NewNumber(30)})

	v, ok := lst.Get(1)
	require.True(t, ok)
	require.Equal(t, values.NewNumber(10), v)

	_, ok = lst.Get(0)
	require.False(t, ok, "index 0 is out of range for a 1-based list")
	_, ok = lst.Get(4)
	require.False(t, ok)
	_, ok = lst.Get(-1)
	require.False(t, ok)

	require.True(t, lst.Set(2, values.NewNumber(99)))
	v, _ = lst.Get(2)
	require.Equal(t, values.NewNumber(99), v)
}

func TestListPushPopInsertDelete(t *testing.T) {
	pool := values.NewRefPool()
	lst := pool.NewList(nil)
	require.Equal(t, 0, lst.Len())

	lst.Push(values.NewNumber(1))
	lst.Push(values.NewNumber(2))
	require.Equal(t, 2, lst.Len())

	lst.InsertAt(2, values.NewNumber(1.5))
	want := []values.Value{values.NewNumber(1), values.NewNumber(1.5), values.NewNumber(2)}
	if diff := cmp.Diff(want, lst.Elements(), valueComparer); diff != "" {
		t.Errorf("InsertAt mismatch (-want +got):\n%s", diff)
	}

	lst.DeleteAt(2)
	want = []values.Value{values.NewNumber(1), values.NewNumber(2)}
	if diff := cmp.Diff(want, lst.Elements(), valueComparer); diff != "" {
		t.Errorf("DeleteAt mismatch (-want +got):\n%s", diff)
	}

	v, ok := lst.Pop()
	require.True(t, ok)
	require.Equal(t, values.NewNumber(2), v)
	require.Equal(t, 1, lst.Len())
}

func TestListElementsIsASnapshot(t *testing.T) {
	pool := values.NewRefPool()
	lst := pool.NewList([]values.Value{values.NewNumber(1)})
	snap := lst.Elements()
	lst.Push(values.NewNumber(2))
	require.Len(t, snap, 1, "Elements must return a copy, unaffected by later mutation")
	require.Equal(t, 2, lst.Len())
}

func TestClosureEqualIsHandleIdentity(t *testing.T) {
	pool := values.NewRefPool()
	c1 := pool.NewClosure(values.ClosureData{EntryPC: 10, ParamNames: []string{"x"}})
	c2 := pool.NewClosure(values.ClosureData{EntryPC: 10, ParamNames: []string{"x"}})
	require.True(t, c1.Equal(c1))
	require.False(t, c1.Equal(c2), "two closures over identical code are still distinct values")
	require.True(t, c1.Truthy())
}
