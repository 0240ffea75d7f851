package gjsdb

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

const (
	hookName      = "__gjsdb$hook"
	anonymousFunc = "(anonymous)"
	globalCode    = "(global)"

	// require() compiles modules wrapped in a function expression that
	// starts on the first line of the module source.
	modulePrefix = "(function(exports,require,module,__filename,__dirname){"
	moduleSuffix = "\n})"
)

var (
	astPkgPath    = reflect.TypeOf(ast.Program{}).PkgPath()
	statementType = reflect.TypeOf((*ast.Statement)(nil)).Elem()
)

// instrumenter inserts a hook call in front of every statement of every
// statement list. Insertions never add line breaks so line numbers of the
// compiled program match the source.
type instrumenter struct {
	script *Script
	src    string
	base   int
	nextID int
	logger *slog.Logger

	points  map[int]*Site
	entries map[*ast.BlockStatement]bool
	funcs   []string
	seen    map[uintptr]bool
}

// instrument parses src and returns the script description together with the
// program to run. If the instrumented text fails to compile the original is
// compiled instead and the returned script has no sites.
func (d *Debuggee) instrument(name, src string) (*Script, *goja.Program, error) {
	prg, err := parser.ParseFile(nil, name, src, 0, parser.WithDisableSourceMaps)
	if err != nil {
		// let the engine produce its usual CompilerSyntaxError
		_, cerr := goja.Compile(name, src, false)
		if cerr == nil {
			cerr = err
		}
		return nil, nil, cerr
	}

	in := d.newInstrumenter(name, src, prg.File.Base())
	in.list(prg.Body, true, false, 0, -1)

	script := in.script
	out := in.rewrite()
	instrumented, err := parser.ParseFile(nil, name, out, 0, parser.WithDisableSourceMaps)
	var compiled *goja.Program
	if err == nil {
		compiled, err = goja.CompileAST(instrumented, false)
	}
	if err != nil {
		d.logger.Warn("running script without instrumentation", "script", name, "error", err)
		compiled, err = goja.CompileAST(prg, false)
		if err != nil {
			return nil, nil, err
		}
		script.Sites = nil
		script.inserts = nil
		return script, compiled, nil
	}
	script.Instrumented = true
	return script, compiled, nil
}

// instrumentModule instruments the source of a module loaded by require().
// It returns the text to hand to the registry, which is src itself when the
// module cannot be instrumented.
func (d *Debuggee) instrumentModule(path, src string) (*Script, string) {
	prg, err := parser.ParseFile(nil, path, modulePrefix+src+moduleSuffix, 0, parser.WithDisableSourceMaps)
	if err != nil {
		// require() reports the syntax error itself
		return nil, src
	}
	body := moduleBody(prg)
	if body == nil {
		return nil, src
	}
	in := d.newInstrumenter(path, src, prg.File.Base()+len(modulePrefix))
	in.script.lineShift = len(modulePrefix)
	in.list(body.List, true, false, 0, -1)

	script := in.script
	out := in.rewrite()
	if _, err := parser.ParseFile(nil, path, modulePrefix+out+moduleSuffix, 0, parser.WithDisableSourceMaps); err != nil {
		d.logger.Warn("running module without instrumentation", "module", path, "error", err)
		script.Sites = nil
		script.inserts = nil
		return script, src
	}
	script.Instrumented = true
	return script, out
}

func moduleBody(prg *ast.Program) *ast.BlockStatement {
	if len(prg.Body) != 1 {
		return nil
	}
	es, ok := prg.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil
	}
	fn, ok := es.Expression.(*ast.FunctionLiteral)
	if !ok {
		return nil
	}
	return fn.Body
}

func (d *Debuggee) newInstrumenter(name, src string, base int) *instrumenter {
	return &instrumenter{
		script:  newScript(name, src),
		src:     src,
		base:    base,
		nextID:  len(d.sites),
		logger:  d.logger,
		points:  make(map[int]*Site),
		entries: make(map[*ast.BlockStatement]bool),
		seen:    make(map[uintptr]bool),
	}
}

func (in *instrumenter) funcName() string {
	if len(in.funcs) == 0 {
		return globalCode
	}
	return in.funcs[len(in.funcs)-1]
}

func (in *instrumenter) offset(idx file.Idx) int {
	return int(idx) - in.base
}

// list instruments a statement list. Directive prologues are left in place
// so "use strict" keeps its meaning. When entry is set the first hook is a
// function entry; closeAt is where to put that hook if the list has none.
// floor is the offset the text of the first statement cannot start before,
// or -1 if unknown.
func (in *instrumenter) list(stmts []ast.Statement, directives, entry bool, floor, closeAt int) {
	first := true
	for _, st := range stmts {
		next := in.offset(st.Idx1())
		if directives {
			if es, ok := st.(*ast.ExpressionStatement); ok {
				if _, ok := es.Expression.(*ast.StringLiteral); ok {
					floor = next
					continue
				}
			}
			directives = false
		}
		switch st.(type) {
		case *ast.FunctionDeclaration, *ast.EmptyStatement:
		default:
			kind := SiteStatement
			if _, ok := st.(*ast.DebuggerStatement); ok {
				kind = SiteDebugger
			}
			pos := in.statementPos(st, floor)
			if pos < 0 || pos > len(in.src) {
				in.logger.Warn("statement position unknown, not instrumented",
					"script", in.script.URL, "statement", fmt.Sprintf("%T", st))
				break
			}
			in.insert(statementStart(in.src, floor, pos), pos, kind, first && entry)
			first = false
		}
		in.walk(reflect.ValueOf(st))
		floor = next
	}
	if first && entry && closeAt >= 0 {
		in.insert(closeAt, closeAt, SiteStatement, true)
	}
}

func (in *instrumenter) insert(at, pos int, kind SiteKind, entry bool) {
	if site, ok := in.points[at]; ok {
		site.FuncEntry = site.FuncEntry || entry
		return
	}
	site := &Site{
		ID:        in.nextID,
		Script:    in.script,
		Pos:       in.script.position(pos),
		Kind:      kind,
		FuncEntry: entry,
		FuncName:  in.funcName(),
	}
	in.nextID++
	in.points[at] = site
	in.script.Sites = append(in.script.Sites, site)
}

func (in *instrumenter) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			in.walk(v.Elem())
		}
	case reflect.Ptr:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct || v.Elem().Type().PkgPath() != astPkgPath {
			return
		}
		if in.seen[v.Pointer()] {
			return
		}
		in.seen[v.Pointer()] = true
		in.node(v)
	case reflect.Slice:
		if v.Type().Elem() == statementType {
			in.list(v.Interface().([]ast.Statement), false, false, -1, -1)
			return
		}
		for i := 0; i < v.Len(); i++ {
			in.walk(v.Index(i))
		}
	case reflect.Struct:
		in.fields(v)
	}
}

func (in *instrumenter) fields(v reflect.Value) {
	if v.Type().PkgPath() != astPkgPath {
		return
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).IsExported() {
			in.walk(v.Field(i))
		}
	}
}

func (in *instrumenter) node(v reflect.Value) {
	switch n := v.Interface().(type) {
	case *ast.FunctionLiteral:
		name := ""
		if n.Name != nil {
			name = n.Name.Name.String()
		}
		in.enterFunction(name, n.Body, v)
		return
	case *ast.ArrowFunctionLiteral:
		body, _ := n.Body.(*ast.BlockStatement)
		in.enterFunction("", body, v)
		return
	case *ast.BlockStatement:
		entry := in.entries[n]
		in.list(n.List, entry, entry, in.offset(n.LeftBrace)+1, in.offset(n.RightBrace))
		return
	case *ast.CaseStatement:
		floor := in.offset(n.Case)
		if n.Test != nil {
			in.walk(reflect.ValueOf(n.Test))
			floor = in.offset(n.Test.Idx1())
		}
		in.list(n.Consequent, false, false, floor, -1)
		return
	}
	in.fields(v.Elem())
}

func (in *instrumenter) enterFunction(name string, body *ast.BlockStatement, v reflect.Value) {
	if body != nil {
		in.entries[body] = true
	}
	if name == "" {
		name = anonymousFunc
	}
	in.funcs = append(in.funcs, name)
	in.fields(v.Elem())
	in.funcs = in.funcs[:len(in.funcs)-1]
}

func (in *instrumenter) rewrite() string {
	offsets := make([]int, 0, len(in.points))
	for at := range in.points {
		offsets = append(offsets, at)
	}
	sort.Ints(offsets)

	var b strings.Builder
	b.Grow(len(in.src) + len(offsets)*(len(hookName)+8))
	prev := 0
	for _, at := range offsets {
		b.WriteString(in.src[prev:at])
		call := fmt.Sprintf("%s(%d);", hookName, in.points[at].ID)
		b.WriteString(call)
		in.script.inserts = append(in.script.inserts, insertion{offset: at, length: len(call)})
		prev = at
	}
	b.WriteString(in.src[prev:])
	return b.String()
}

// statementPos returns the offset of the first token of st.
func (in *instrumenter) statementPos(st ast.Statement, floor int) int {
	// the parser does not record where an if statement starts
	if n, ok := st.(*ast.IfStatement); ok && n.If == 0 {
		return keywordBefore(in.src, "if", floor, in.offset(n.Test.Idx0()))
	}
	return in.offset(st.Idx0())
}

// keywordBefore finds kw in front of pos, stepping back over the opening
// parentheses, blanks and block comments between them. If that fails it
// looks for the last kw in src[floor:pos]. It returns -1 if kw is not found.
func keywordBefore(src, kw string, floor, pos int) int {
	if pos < 0 || pos > len(src) {
		return -1
	}
	i := pos
	for i > 0 {
		c := src[i-1]
		if c == '(' || c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i--
			continue
		}
		if c == '/' && i >= 2 && src[i-2] == '*' {
			k := strings.LastIndex(src[:i-2], "/*")
			if k < 0 {
				break
			}
			i = k
			continue
		}
		break
	}
	if i >= len(kw) && src[i-len(kw):i] == kw {
		return i - len(kw)
	}
	if floor >= 0 && floor <= pos {
		if k := strings.LastIndex(src[floor:pos], kw); k >= 0 {
			return floor + k
		}
	}
	return -1
}

// statementStart moves an insertion point back to the first of the opening
// parentheses that belong to the statement at pos, so that
// `(function() {})()` is not split. src[floor:pos] is the text between the
// previous statement and this one. Comments in it are skipped, so a
// parenthesis inside a comment is never taken.
func statementStart(src string, floor, pos int) int {
	if floor < 0 || floor > pos || pos > len(src) {
		return pos
	}
	start := -1
	for i := floor; i < pos; {
		switch c := src[i]; {
		case c == '(':
			if start < 0 {
				start = i
			}
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case strings.HasPrefix(src[i:pos], "//"):
			k := strings.IndexByte(src[i:pos], '\n')
			if k < 0 {
				return pos
			}
			i += k + 1
		case strings.HasPrefix(src[i:pos], "/*"):
			k := strings.Index(src[i+2:pos], "*/")
			if k < 0 {
				return pos
			}
			i += k + 4
		default:
			start = -1
			i++
		}
	}
	if start < 0 {
		return pos
	}
	return start
}
