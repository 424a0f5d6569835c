package project_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/project"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

// warpYieldRole builds: a warp block running repeat_times(3) (three loop
// back-edges, all suppressed since warp_depth > 0), followed by an
// unwrapped repeat_times(mode) (mode loop back-edges, each one a yield
// point at warp_depth == 0). Counting Step's Yield results this way is
// exact from the compiler's own back-edge placement (bytecode/compiler.go
// RepeatTimesStmt: one OpLoop per completed iteration), so it doesn't
// depend on reproducing the original program's specific counters
// (SPEC_FULL.md §8 on warp_yields).
func warpYieldRole(mode float64) *ast.Role {
	body := []ast.Stmt{
		&ast.VarDeclStmt{Name: "counter", Init: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 0}}},
		&ast.WarpStmt{Body: []ast.Stmt{
			&ast.RepeatTimesStmt{
				Times: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 3}},
				Body: []ast.Stmt{
					&ast.AssignStmt{Name: "counter", Value: &ast.BinExpr{
						Op:    ast.OpAdd,
						Left:  &ast.VarExpr{Name: "counter"},
						Right: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 1}},
					}},
				},
			},
		}},
		&ast.RepeatTimesStmt{
			Times: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: mode}},
			Body: []ast.Stmt{
				&ast.AssignStmt{Name: "counter", Value: &ast.BinExpr{
					Op:    ast.OpAdd,
					Left:  &ast.VarExpr{Name: "counter"},
					Right: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 1}},
				}},
			},
		},
		&ast.ReturnStmt{Value: &ast.VarExpr{Name: "counter"}},
	}

	return &ast.Role{
		Name: "warp_yields",
		Sprites: []ast.Sprite{
			{
				Name:    "Stage",
				Scripts: []ast.Script{{Hat: &ast.Hat{Kind: ast.HatOnFlag}, Body: body}},
			},
		},
	}
}

func runWarpScenario(t *testing.T, mode float64) (yields int, final values.Value) {
	t.Helper()

	sys := system.NewStd()
	proj, err := project.New(warpYieldRole(mode), 64, sys)
	require.NoError(t, err)

	ent, _, ok := proj.EntityByName("Stage")
	require.True(t, ok)
	ent.Scripts()[0].Schedule(0, values.NewSymbolTable())

	for i := 0; i < maxSteps; i++ {
		result := proj.Step()
		switch result.Kind {
		case process.StepYield:
			yields++
		case process.StepTerminate:
			require.True(t, result.HasValue)
			return yields, result.Value
		}
	}
	t.Fatalf("warp scenario mode=%v did not terminate within %d steps", mode, maxSteps)
	return 0, nil
}

func TestWarpSuppressesInnerYields(t *testing.T) {
	for _, mode := range []float64{9, 3} {
		mode := mode
		yields, final := runWarpScenario(t, mode)

		// The warped repeat_times(3) contributes zero yields regardless of
		// its own iteration count; only the unwrapped outer loop yields,
		// once per completed iteration.
		require.EqualValues(t, mode, yields, "mode=%v", mode)
		require.Equal(t, values.NewNumber(3+mode), final, "mode=%v", mode)
	}
}
