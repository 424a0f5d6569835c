package project_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/project"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

const maxSteps = 1_000_000

// runToTermination schedules the entry script directly (bypassing
// Project.Input, which only knows how to build OnFlag/OnKeyPress/OnMessage
// contexts) with the fixture's seed locals, then steps the whole project
// until that invocation terminates.
func runToTermination(t *testing.T, f *project.Fixture) process.StepType {
	t.Helper()

	role, err := f.BuildRole()
	require.NoError(t, err)

	sys := system.NewStd()
	proj, err := project.New(role, 64, sys)
	require.NoError(t, err)

	locals, err := f.EntryLocals()
	require.NoError(t, err)

	ctx := values.NewSymbolTable()
	for name, lit := range locals {
		require.NoError(t, ctx.Define(name, values.NewCell(proj.Pool().FromAST(lit))))
	}

	ent, _, ok := proj.EntityByName(f.Entry.Sprite)
	require.True(t, ok, "entry sprite %q not found", f.Entry.Sprite)
	scripts := ent.Scripts()
	require.Greater(t, len(scripts), f.Entry.Script)
	scripts[f.Entry.Script].Schedule(0, ctx)

	for i := 0; i < maxSteps; i++ {
		result := proj.Step()
		if result.Kind == process.StepTerminate {
			return result
		}
	}
	t.Fatalf("fixture %q did not terminate within %d steps", f.Name, maxSteps)
	return process.StepType{}
}

func loadFixture(t *testing.T, name string) *project.Fixture {
	t.Helper()
	f, err := project.LoadFixture(filepath.Join("testdata", name))
	require.NoError(t, err)
	return f
}

func TestEndToEndScenarios(t *testing.T) {
	cases := []string{
		"sum_1_to_n.yaml",
		"factorial.yaml",
		"sieve.yaml",
		"early_return.yaml",
		"str_cmp_case_insensitive.yaml",
	}

	for _, name := range cases {
		name := name
		t.Run(name, func(t *testing.T) {
			f := loadFixture(t, name)
			result := runToTermination(t, f)
			require.True(t, result.HasValue)

			wantLit, hasWant, err := f.ExpectedLiteral()
			require.NoError(t, err)
			require.True(t, hasWant)

			pool := values.NewRefPool()
			want := pool.FromAST(wantLit)
			require.True(t, result.Value.Equal(want), "got %s, want %s", result.Value.String(), want.String())
		})
	}
}

// TestSelfContainingList exercises a list that pushes itself onto itself:
// the terminate value must be length 11 with its own identity at index 11,
// and Equal must not loop forever on the cycle (spec.md §8 property: cycle
// identity).
func TestSelfContainingList(t *testing.T) {
	f := loadFixture(t, "self_containing_list.yaml")
	result := runToTermination(t, f)
	require.True(t, result.HasValue)

	lst, ok := result.Value.(values.ListValue)
	require.True(t, ok)
	require.Equal(t, 11, lst.Len())

	self, ok := lst.Get(11)
	require.True(t, ok)
	require.Equal(t, lst.Identity(), self.Identity())

	// Equal must terminate (identity-first comparison short-circuits the
	// cycle) rather than recursing forever.
	require.True(t, lst.Equal(lst))
}
