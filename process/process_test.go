package process_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/bytecode"
	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

const maxSteps = 100_000

func num(f float64) ast.Literal { return ast.Literal{Kind: ast.LitNumber, Number: f} }

// runScript compiles a single-script role and steps it to termination,
// returning the terminate value and the number of Yield results observed.
func runScript(t *testing.T, body []ast.Stmt, maxCallDepth int) (values.Value, int) {
	t.Helper()
	role := &ast.Role{
		Sprites: []ast.Sprite{{Name: "Stage", Scripts: []ast.Script{{Body: body}}}},
	}
	code, err := bytecode.Compile(role)
	require.NoError(t, err)

	pool := values.NewRefPool()
	sys := system.NewStd()
	proc := process.New(code, maxCallDepth)
	proc.Initialize(code.Entities[0].Scripts[0], values.NewSymbolTable())

	yields := 0
	for i := 0; i < maxSteps; i++ {
		result, err := proc.Step(pool, sys, nil)
		require.NoError(t, err)
		if result.Kind == process.StepYield {
			yields++
		}
		if result.Kind == process.StepTerminate {
			return result.Value, yields
		}
	}
	t.Fatal("script did not terminate")
	return nil, 0
}

func TestArithmeticIEEE754DivisionEdgeCases(t *testing.T) {
	cases := []struct {
		name    string
		a, b    float64
		checkFn func(t *testing.T, got float64)
	}{
		{"zero_over_zero", 0, 0, func(t *testing.T, got float64) { require.True(t, math.IsNaN(got)) }},
		{"one_over_zero", 1, 0, func(t *testing.T, got float64) { require.True(t, math.IsInf(got, 1)) }},
		{"neg_one_over_zero", -1, 0, func(t *testing.T, got float64) { require.True(t, math.IsInf(got, -1)) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body := []ast.Stmt{
				&ast.ReturnStmt{Value: &ast.BinExpr{
					Op:    ast.OpDiv,
					Left:  &ast.LitExpr{Value: num(c.a)},
					Right: &ast.LitExpr{Value: num(c.b)},
				}},
			}
			got, _ := runScript(t, body, 16)
			n, ok := got.(values.NumberValue)
			require.True(t, ok)
			c.checkFn(t, n.Val)
		})
	}
}

func TestIndexOutOfRangeErrors(t *testing.T) {
	for _, idx := range []float64{0, -1, 4} {
		idx := idx
		t.Run("", func(t *testing.T) {
			role := &ast.Role{
				Sprites: []ast.Sprite{{Name: "Stage", Scripts: []ast.Script{{Body: []ast.Stmt{
					&ast.ExprStmt{Expr: &ast.IndexExpr{
						List:  &ast.ListExpr{Elements: []ast.Expr{&ast.LitExpr{Value: num(1)}, &ast.LitExpr{Value: num(2)}, &ast.LitExpr{Value: num(3)}}},
						Index: &ast.LitExpr{Value: num(idx)},
					}},
				}}}}},
			}
			code, err := bytecode.Compile(role)
			require.NoError(t, err)
			pool := values.NewRefPool()
			sys := system.NewStd()
			proc := process.New(code, 16)
			proc.Initialize(code.Entities[0].Scripts[0], values.NewSymbolTable())

			var stepErr error
			for i := 0; i < maxSteps; i++ {
				var result process.StepType
				result, stepErr = proc.Step(pool, sys, nil)
				if stepErr != nil || result.Kind == process.StepTerminate {
					break
				}
			}
			require.Error(t, stepErr)
			execErr, ok := stepErr.(*process.ExecError)
			require.True(t, ok)
			require.Equal(t, process.ErrIndexOutOfRange, execErr.Kind)
			require.False(t, proc.IsRunning(), "a runtime error aborts the process")
		})
	}
}

func TestEmptyListLength(t *testing.T) {
	body := []ast.Stmt{
		&ast.ReturnStmt{Value: &ast.LengthExpr{List: &ast.ListExpr{}}},
	}
	got, _ := runScript(t, body, 16)
	require.Equal(t, values.NewNumber(0), got)
}

func TestCallDepthExceeded(t *testing.T) {
	role := &ast.Role{
		Funcs: []ast.FuncDef{
			{
				Name: "recurse",
				Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.CallExpr{Func: "recurse"}}},
			},
		},
		Sprites: []ast.Sprite{{Name: "Stage", Scripts: []ast.Script{{Body: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.CallExpr{Func: "recurse"}},
		}}}}},
	}
	code, err := bytecode.Compile(role)
	require.NoError(t, err)
	pool := values.NewRefPool()
	sys := system.NewStd()
	proc := process.New(code, 8)
	proc.Initialize(code.Entities[0].Scripts[0], values.NewSymbolTable())

	var stepErr error
	for i := 0; i < maxSteps; i++ {
		var result process.StepType
		result, stepErr = proc.Step(pool, sys, nil)
		if stepErr != nil || result.Kind == process.StepTerminate {
			break
		}
	}
	require.Error(t, stepErr)
	execErr, ok := stepErr.(*process.ExecError)
	require.True(t, ok)
	require.Equal(t, process.ErrCallDepthExceeded, execErr.Kind)
}

// recordingScope implements process.Scope over a single flat SymbolTable,
// standing in for a project.Entity in tests that need global/field lookup
// without pulling in the project package.
type recordingScope struct {
	globals *values.SymbolTable
}

func (s *recordingScope) LookupField(name string) (*values.Cell, bool)  { return nil, false }
func (s *recordingScope) LookupGlobal(name string) (*values.Cell, bool) { return s.globals.Lookup(name) }

func TestClosureCapturesAreAliasedCells(t *testing.T) {
	// make_closure captures outer local "x" by cell; mutating x after the
	// closure is created but before it is called must still be observed
	// when the closure runs, since it captured the cell, not a snapshot.
	body := []ast.Stmt{
		&ast.VarDeclStmt{Name: "x", Init: &ast.LitExpr{Value: num(1)}},
		&ast.VarDeclStmt{Name: "getter", Init: &ast.MakeClosureExpr{
			Captures: []string{"x"},
			Body:     []ast.Stmt{&ast.ReturnStmt{Value: &ast.VarExpr{Name: "x"}}},
		}},
		&ast.AssignStmt{Name: "x", Value: &ast.LitExpr{Value: num(99)}},
		&ast.ReturnStmt{Value: &ast.CallClosureExpr{Closure: &ast.VarExpr{Name: "getter"}}},
	}
	got, _ := runScript(t, body, 16)
	require.Equal(t, values.NewNumber(99), got, "the closure must observe the write through the shared cell, not a snapshot taken at capture time")
}

func TestScopeFallsBackToGlobals(t *testing.T) {
	code, err := bytecode.Compile(&ast.Role{
		Sprites: []ast.Sprite{{Name: "Stage", Scripts: []ast.Script{{Body: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.VarExpr{Name: "g"}},
		}}}}},
	})
	require.NoError(t, err)

	globals := values.NewSymbolTable()
	require.NoError(t, globals.Define("g", values.NewCell(values.NewNumber(7))))
	scope := &recordingScope{globals: globals}

	pool := values.NewRefPool()
	sys := system.NewStd()
	proc := process.New(code, 16)
	proc.Initialize(code.Entities[0].Scripts[0], values.NewSymbolTable())

	for i := 0; i < maxSteps; i++ {
		result, err := proc.Step(pool, sys, scope)
		require.NoError(t, err)
		if result.Kind == process.StepTerminate {
			require.Equal(t, values.NewNumber(7), result.Value)
			return
		}
	}
	t.Fatal("script did not terminate")
}

func TestWaitSuspendsUntilElapsed(t *testing.T) {
	role := &ast.Role{
		Sprites: []ast.Sprite{{Name: "Stage", Scripts: []ast.Script{{Body: []ast.Stmt{
			&ast.WaitStmt{Millis: &ast.LitExpr{Value: num(10)}},
			&ast.ReturnStmt{Value: &ast.LitExpr{Value: num(1)}},
		}}}}},
	}
	code, err := bytecode.Compile(role)
	require.NoError(t, err)

	clock := &fakeClock{}
	pool := values.NewRefPool()
	proc := process.New(code, 16)
	proc.Initialize(code.Entities[0].Scripts[0], values.NewSymbolTable())

	result, err := proc.Step(pool, clock, nil)
	require.NoError(t, err)
	require.Equal(t, process.StepNormal, result.Kind, "pushing the duration constant is an ordinary step")

	result, err = proc.Step(pool, clock, nil)
	require.NoError(t, err)
	require.Equal(t, process.StepYield, result.Kind, "the first OpWait step must yield and record a deadline")

	result, err = proc.Step(pool, clock, nil)
	require.NoError(t, err)
	require.Equal(t, process.StepYield, result.Kind, "still waiting before the deadline")

	clock.advance(20 * 1e6) // 20ms in nanoseconds
	result, err = proc.Step(pool, clock, nil)
	require.NoError(t, err)
	require.Equal(t, process.StepNormal, result.Kind, "the deadline has passed")
}
