package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dragazo/NetsBlox-vm/ast"
)

// Fixture is one end-to-end scenario: a role plus the entry point and
// locals to run it with, and the expected result — grounded on the
// teacher's conformance/schema.go TestCase shape (name + expectation),
// adapted here to hold a structured ast.Role instead of raw MOO source
// text, since this spec's AST is a closed Go interface tree rather than
// a parseable language (SPEC_FULL.md §8).
type Fixture struct {
	Name   string          `yaml:"name"`
	Role   fixtureRole     `yaml:"role"`
	Entry  fixtureEntry    `yaml:"entry"`
	Expect fixtureExpected `yaml:"expect"`
}

// fixtureEntry names which sprite/script to drive directly
// (bypassing Project.Input, for focused unit-style scenarios) and any
// locals to seed the root frame with.
type fixtureEntry struct {
	Sprite string            `yaml:"sprite"`
	Script int               `yaml:"script"`
	Locals map[string]yaml.Node `yaml:"locals"`
}

type fixtureExpected struct {
	Result yaml.Node `yaml:"result"`
	HasResult bool   `yaml:"-"`
}

// LoadFixture reads and decodes one YAML scenario file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Name  string       `yaml:"name"`
		Role  fixtureRole  `yaml:"role"`
		Entry fixtureEntry `yaml:"entry"`
		Expect struct {
			Result yaml.Node `yaml:"result"`
		} `yaml:"expect"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("project: decoding fixture %s: %w", path, err)
	}
	f := &Fixture{Name: raw.Name, Role: raw.Role, Entry: raw.Entry}
	f.Expect.Result = raw.Expect.Result
	f.Expect.HasResult = raw.Expect.Result.Kind != 0
	return f, nil
}

// BuildRole converts the decoded fixture role into an ast.Role.
func (f *Fixture) BuildRole() (*ast.Role, error) {
	return f.Role.toAST()
}

// ExpectedLiteral decodes the fixture's expected result, if any.
func (f *Fixture) ExpectedLiteral() (ast.Literal, bool, error) {
	if !f.Expect.HasResult {
		return ast.Literal{}, false, nil
	}
	lit, err := decodeLiteral(&f.Expect.Result)
	return lit, true, err
}

// EntryLocals decodes the entry point's seed locals.
func (f *Fixture) EntryLocals() (map[string]ast.Literal, error) {
	out := make(map[string]ast.Literal, len(f.Entry.Locals))
	for name, node := range f.Entry.Locals {
		n := node
		lit, err := decodeLiteral(&n)
		if err != nil {
			return nil, fmt.Errorf("entry local %q: %w", name, err)
		}
		out[name] = lit
	}
	return out, nil
}

// ---------------------------------------------------------------------
// YAML-decodable mirror of ast.Role
// ---------------------------------------------------------------------

type fixtureRole struct {
	Name    string           `yaml:"name"`
	Globals []fixtureVarDef  `yaml:"globals"`
	Funcs   []fixtureFuncDef `yaml:"funcs"`
	Sprites []fixtureSprite  `yaml:"sprites"`
}

type fixtureVarDef struct {
	Name  string    `yaml:"name"`
	Value yaml.Node `yaml:"value"`
}

type fixtureFuncDef struct {
	Name   string      `yaml:"name"`
	Params []string    `yaml:"params"`
	Body   []yaml.Node `yaml:"body"`
}

type fixtureSprite struct {
	Name    string           `yaml:"name"`
	Fields  []fixtureVarDef  `yaml:"fields"`
	Scripts []fixtureScript  `yaml:"scripts"`
	Methods []fixtureFuncDef `yaml:"methods"`
}

type fixtureScript struct {
	Hat  *fixtureHat `yaml:"hat"`
	Body []yaml.Node `yaml:"body"`
}

type fixtureHat struct {
	Kind string `yaml:"kind"` // flag|key_press|message|clone
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

func (r *fixtureRole) toAST() (*ast.Role, error) {
	out := &ast.Role{Name: r.Name}
	for _, g := range r.Globals {
		lit, err := decodeLiteral(&g.Value)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		out.Globals = append(out.Globals, ast.VarDef{Name: g.Name, Value: lit})
	}
	for _, fn := range r.Funcs {
		body, err := decodeStmts(fn.Body)
		if err != nil {
			return nil, fmt.Errorf("func %q: %w", fn.Name, err)
		}
		out.Funcs = append(out.Funcs, ast.FuncDef{Name: fn.Name, Params: fn.Params, Body: body})
	}
	for _, s := range r.Sprites {
		sprite := ast.Sprite{Name: s.Name}
		for _, f := range s.Fields {
			lit, err := decodeLiteral(&f.Value)
			if err != nil {
				return nil, fmt.Errorf("sprite %q field %q: %w", s.Name, f.Name, err)
			}
			sprite.Fields = append(sprite.Fields, ast.VarDef{Name: f.Name, Value: lit})
		}
		for _, scr := range s.Scripts {
			body, err := decodeStmts(scr.Body)
			if err != nil {
				return nil, fmt.Errorf("sprite %q script: %w", s.Name, err)
			}
			var hat *ast.Hat
			if scr.Hat != nil {
				hat = &ast.Hat{Kind: hatKindFromString(scr.Hat.Kind), Key: scr.Hat.Key, Name: scr.Hat.Name}
			}
			sprite.Scripts = append(sprite.Scripts, ast.Script{Hat: hat, Body: body})
		}
		for _, m := range s.Methods {
			body, err := decodeStmts(m.Body)
			if err != nil {
				return nil, fmt.Errorf("sprite %q method %q: %w", s.Name, m.Name, err)
			}
			sprite.Methods = append(sprite.Methods, ast.FuncDef{Name: m.Name, Params: m.Params, Body: body})
		}
		out.Sprites = append(out.Sprites, sprite)
	}
	return out, nil
}

func hatKindFromString(s string) ast.HatKind {
	switch s {
	case "key_press":
		return ast.HatOnKeyPress
	case "message":
		return ast.HatOnMessage
	case "clone":
		return ast.HatOnClone
	default:
		return ast.HatOnFlag
	}
}

// ---------------------------------------------------------------------
// Literal decoding
// ---------------------------------------------------------------------

func decodeLiteral(n *yaml.Node) (ast.Literal, error) {
	if n == nil || n.Kind == 0 {
		return ast.Literal{Kind: ast.LitNumber, Number: 0}, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return ast.Literal{}, err
			}
			return ast.Literal{Kind: ast.LitBool, Bool: b}, nil
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return ast.Literal{}, err
			}
			return ast.Literal{Kind: ast.LitNumber, Number: f}, nil
		default:
			var s string
			if err := n.Decode(&s); err != nil {
				return ast.Literal{}, err
			}
			return ast.Literal{Kind: ast.LitString, Str: s}, nil
		}
	case yaml.SequenceNode:
		elems := make([]ast.Literal, len(n.Content))
		for i, c := range n.Content {
			lit, err := decodeLiteral(c)
			if err != nil {
				return ast.Literal{}, err
			}
			elems[i] = lit
		}
		return ast.Literal{Kind: ast.LitList, List: elems}, nil
	default:
		return ast.Literal{}, fmt.Errorf("unsupported literal node kind %v", n.Kind)
	}
}

// ---------------------------------------------------------------------
// Statement / expression decoding: each node is a one-key mapping whose
// key names the node kind.
// ---------------------------------------------------------------------

func soleKey(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, fmt.Errorf("expected a one-key mapping node, got kind %v with %d items", n.Kind, len(n.Content))
	}
	return n.Content[0].Value, n.Content[1], nil
}

func decodeStmts(nodes []yaml.Node) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, len(nodes))
	for i := range nodes {
		s, err := decodeStmt(&nodes[i])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decodeExprs(nodes []yaml.Node) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(nodes))
	for i := range nodes {
		e, err := decodeExpr(&nodes[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func decodeExpr(n *yaml.Node) (ast.Expr, error) {
	key, val, err := soleKey(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "lit":
		lit, err := decodeLiteral(val)
		if err != nil {
			return nil, err
		}
		return &ast.LitExpr{Value: lit}, nil
	case "var":
		return &ast.VarExpr{Name: val.Value}, nil
	case "bin":
		var m struct {
			Op    string    `yaml:"op"`
			Left  yaml.Node `yaml:"left"`
			Right yaml.Node `yaml:"right"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		left, err := decodeExpr(&m.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(&m.Right)
		if err != nil {
			return nil, err
		}
		op, ok := binOps[m.Op]
		if !ok {
			return nil, fmt.Errorf("unknown binary op %q", m.Op)
		}
		return &ast.BinExpr{Op: op, Left: left, Right: right}, nil
	case "un":
		var m struct {
			Op      string    `yaml:"op"`
			Operand yaml.Node `yaml:"operand"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		operand, err := decodeExpr(&m.Operand)
		if err != nil {
			return nil, err
		}
		op, ok := unOps[m.Op]
		if !ok {
			return nil, fmt.Errorf("unknown unary op %q", m.Op)
		}
		return &ast.UnExpr{Op: op, Operand: operand}, nil
	case "list":
		elems, err := decodeExprs(val.Content)
		if err != nil {
			return nil, err
		}
		return &ast.ListExpr{Elements: elems}, nil
	case "index":
		var m struct {
			List  yaml.Node `yaml:"list"`
			Index yaml.Node `yaml:"index"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		list, err := decodeExpr(&m.List)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(&m.Index)
		if err != nil {
			return nil, err
		}
		return &ast.IndexExpr{List: list, Index: idx}, nil
	case "length":
		list, err := decodeExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.LengthExpr{List: list}, nil
	case "call":
		var m struct {
			Func string      `yaml:"func"`
			Args []yaml.Node `yaml:"args"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		args, err := decodeExprs(m.Args)
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{Func: m.Func, Args: args}, nil
	case "make_closure":
		var m struct {
			Params   []string    `yaml:"params"`
			Captures []string    `yaml:"captures"`
			Body     []yaml.Node `yaml:"body"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		body, err := decodeStmts(m.Body)
		if err != nil {
			return nil, err
		}
		return &ast.MakeClosureExpr{Params: m.Params, Captures: m.Captures, Body: body}, nil
	case "call_closure":
		var m struct {
			Closure yaml.Node   `yaml:"closure"`
			Args    []yaml.Node `yaml:"args"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		closure, err := decodeExpr(&m.Closure)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(m.Args)
		if err != nil {
			return nil, err
		}
		return &ast.CallClosureExpr{Closure: closure, Args: args}, nil
	default:
		return nil, fmt.Errorf("unknown expr node %q", key)
	}
}

func decodeStmt(n *yaml.Node) (ast.Stmt, error) {
	key, val, err := soleKey(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "expr":
		e, err := decodeExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: e}, nil
	case "var_decl":
		var m struct {
			Name string     `yaml:"name"`
			Init *yaml.Node `yaml:"init"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		var init ast.Expr
		if m.Init != nil {
			init, err = decodeExpr(m.Init)
			if err != nil {
				return nil, err
			}
		}
		return &ast.VarDeclStmt{Name: m.Name, Init: init}, nil
	case "assign":
		var m struct {
			Name  string    `yaml:"name"`
			Value yaml.Node `yaml:"value"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		v, err := decodeExpr(&m.Value)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Name: m.Name, Value: v}, nil
	case "index_assign":
		var m struct {
			List  yaml.Node `yaml:"list"`
			Index yaml.Node `yaml:"index"`
			Value yaml.Node `yaml:"value"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		list, err := decodeExpr(&m.List)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(&m.Index)
		if err != nil {
			return nil, err
		}
		v, err := decodeExpr(&m.Value)
		if err != nil {
			return nil, err
		}
		return &ast.IndexAssignStmt{List: list, Index: idx, Value: v}, nil
	case "list_push":
		var m struct {
			List  yaml.Node `yaml:"list"`
			Value yaml.Node `yaml:"value"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		list, err := decodeExpr(&m.List)
		if err != nil {
			return nil, err
		}
		v, err := decodeExpr(&m.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ListPushStmt{List: list, Value: v}, nil
	case "if":
		var m struct {
			Cond yaml.Node   `yaml:"cond"`
			Then []yaml.Node `yaml:"then"`
			Else []yaml.Node `yaml:"else"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(&m.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeStmts(m.Then)
		if err != nil {
			return nil, err
		}
		var els []ast.Stmt
		if len(m.Else) > 0 {
			els, err = decodeStmts(m.Else)
			if err != nil {
				return nil, err
			}
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els}, nil
	case "repeat_until":
		var m struct {
			Cond yaml.Node   `yaml:"cond"`
			Body []yaml.Node `yaml:"body"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(&m.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(m.Body)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatUntilStmt{Cond: cond, Body: body}, nil
	case "repeat_times":
		var m struct {
			Times yaml.Node   `yaml:"times"`
			Body  []yaml.Node `yaml:"body"`
		}
		if err := val.Decode(&m); err != nil {
			return nil, err
		}
		times, err := decodeExpr(&m.Times)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(m.Body)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatTimesStmt{Times: times, Body: body}, nil
	case "forever":
		body, err := decodeStmts(val.Content)
		if err != nil {
			return nil, err
		}
		return &ast.ForeverStmt{Body: body}, nil
	case "return":
		if val == nil || val.Kind == 0 {
			return &ast.ReturnStmt{}, nil
		}
		v, err := decodeExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: v}, nil
	case "warp":
		body, err := decodeStmts(val.Content)
		if err != nil {
			return nil, err
		}
		return &ast.WarpStmt{Body: body}, nil
	case "yield":
		return &ast.YieldStmt{}, nil
	case "wait":
		millis, err := decodeExpr(val)
		if err != nil {
			return nil, err
		}
		return &ast.WaitStmt{Millis: millis}, nil
	default:
		return nil, fmt.Errorf("unknown stmt node %q", key)
	}
}

var binOps = map[string]ast.BinOp{
	"add": ast.OpAdd, "sub": ast.OpSub, "mul": ast.OpMul, "div": ast.OpDiv,
	"mod": ast.OpMod, "pow": ast.OpPow, "eq": ast.OpEq, "neq": ast.OpNeq,
	"lt": ast.OpLt, "le": ast.OpLe, "gt": ast.OpGt, "ge": ast.OpGe,
	"and": ast.OpAnd, "or": ast.OpOr,
}

var unOps = map[string]ast.UnOp{
	"neg": ast.OpNeg, "not": ast.OpNot,
}
