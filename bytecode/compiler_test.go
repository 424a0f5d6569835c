package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/bytecode"
)

func sampleRole() *ast.Role {
	return &ast.Role{
		Name: "sample",
		Funcs: []ast.FuncDef{
			{
				Name:   "double",
				Params: []string{"x"},
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.BinExpr{
						Op:    ast.OpMul,
						Left:  &ast.VarExpr{Name: "x"},
						Right: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 2}},
					}},
				},
			},
		},
		Sprites: []ast.Sprite{
			{
				Name: "Stage",
				Scripts: []ast.Script{
					{
						Hat: &ast.Hat{Kind: ast.HatOnFlag},
						Body: []ast.Stmt{
							&ast.VarDeclStmt{Name: "n", Init: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 5}}},
							&ast.IfStmt{
								Cond: &ast.BinExpr{Op: ast.OpGt, Left: &ast.VarExpr{Name: "n"}, Right: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 0}}},
								Then: []ast.Stmt{&ast.ExprStmt{Expr: &ast.CallExpr{Func: "double", Args: []ast.Expr{&ast.VarExpr{Name: "n"}}}}},
							},
							&ast.RepeatTimesStmt{
								Times: &ast.LitExpr{Value: ast.Literal{Kind: ast.LitNumber, Number: 3}},
								Body:  []ast.Stmt{&ast.YieldStmt{}},
							},
						},
					},
				},
			},
		},
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	a, err := bytecode.Compile(sampleRole())
	require.NoError(t, err)
	b, err := bytecode.Compile(sampleRole())
	require.NoError(t, err)

	require.Equal(t, a.Code, b.Code)
	require.Equal(t, a.Constants, b.Constants)
	require.Equal(t, a.VarNames, b.VarNames)
	require.Equal(t, a.Funcs, b.Funcs)
	require.Equal(t, a.Entities, b.Entities)
}

func TestCompileUndeclaredCallFails(t *testing.T) {
	role := &ast.Role{
		Sprites: []ast.Sprite{
			{
				Name: "Stage",
				Scripts: []ast.Script{
					{Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.CallExpr{Func: "missing"}}}},
				},
			},
		},
	}
	_, err := bytecode.Compile(role)
	require.Error(t, err)
}

func TestCompileEntityLocations(t *testing.T) {
	code, err := bytecode.Compile(sampleRole())
	require.NoError(t, err)
	require.Len(t, code.Entities, 1)
	require.Len(t, code.Entities[0].Scripts, 1)
	require.Equal(t, 0, code.Entities[0].Scripts[0], "the lone script starts at PC 0")
	require.Len(t, code.Funcs, 1)
	require.Equal(t, "double", code.Funcs[0].Name)
	require.GreaterOrEqual(t, code.Funcs[0].EntryPC, 0)
}
