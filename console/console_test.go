package console

import (
	"bytes"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dop251/gjsdb"
)

type testConsole struct {
	debuggee *gjsdb.Debuggee
	realm    *gjsdb.Realm
	console  *Console
	reader   *scriptedReader
	out      *bytes.Buffer
}

func newTestConsole(t *testing.T, lines ...string) *testConsole {
	t.Helper()
	logger, _ := newTestLogger()
	d := gjsdb.NewDebuggee(gjsdb.WithLogger(logger))
	r, err := gjsdb.NewRealm(d, gjsdb.WithLogger(logger), gjsdb.WithRootSet(gjsdb.NewRootSet()))
	require.NoError(t, err)
	t.Cleanup(r.Close)

	reader := newScriptedReader(lines...)
	var out bytes.Buffer
	c, err := Setup(r, WithInput(reader), WithOutput(&out), WithColor(false), WithLogger(logger))
	require.NoError(t, err)
	return &testConsole{debuggee: d, realm: r, console: c, reader: reader, out: &out}
}

func TestConsoleBreakpointThenStep(t *testing.T) {
	tc := newTestConsole(t, "step", "continue")
	_, err := tc.realm.Debugger().SetFunctionBreakpoint("f", "")
	require.NoError(t, err)

	_, err = tc.debuggee.RunScript("e2e.js", "function f() { return 1; }\nf();\nvar done = true;\n")
	require.NoError(t, err)

	out := tc.out.String()
	assert.Contains(t, out, "Received breakpoint (program stopped at e2e.js:1)\nBreakpoint 1, f()\n")
	assert.Contains(t, out, "Received step (program stopped at e2e.js:3)\n")
	assert.Empty(t, tc.reader.lines, "all input is consumed")
	assert.Len(t, tc.reader.prompts, 2)
	assert.Equal(t, 1, tc.realm.Debugger().Breakpoints()[0].Hits)
	assert.Equal(t, true, tc.debuggee.Runtime().Get("done").Export())
	assert.Equal(t, Released, tc.console.Session().State())
	assert.Equal(t, []string{"step", "continue"}, tc.console.IO().History().Entries())
}

func TestConsoleCommands(t *testing.T) {
	tc := newTestConsole(t,
		"frobnicate",
		"info breakpoints",
		"print a + 1",
		"print nope(",
		"bt",
		"break 3",
		"continue",
		"delete 1",
		"c",
	)
	_, err := tc.debuggee.RunScript("cmd.js", "var a = 1;\ndebugger;\nvar b = 2;\n")
	require.NoError(t, err)

	out := tc.out.String()
	assert.Contains(t, out, "Received debugger (program stopped at cmd.js:2)\n")
	assert.Contains(t, out, `Unknown command "frobnicate". Type "help" for a list of commands.`)
	assert.Contains(t, out, "No breakpoints.\n")
	assert.Contains(t, out, "$ = 2\n")
	assert.Contains(t, out, "SyntaxError")
	assert.Contains(t, out, "#0 ")
	assert.Contains(t, out, " at cmd.js:2:1\n")
	assert.Contains(t, out, "Breakpoint 1 at cmd.js:3 (hits: 0)\n")
	assert.Contains(t, out, "Received breakpoint (program stopped at cmd.js:3)\n")
	assert.Contains(t, out, "Deleted breakpoint 1\n")
	assert.Empty(t, tc.reader.lines)
}

func TestConsoleEndOfInputResumes(t *testing.T) {
	tc := newTestConsole(t)
	v, err := tc.debuggee.RunScript("eof.js", "debugger;\n40 + 2")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())
	assert.Len(t, tc.reader.prompts, 1)
}

func TestConsoleQuit(t *testing.T) {
	tc := newTestConsole(t, "quit")
	_, err := tc.debuggee.RunScript("quit.js", "debugger;\nvar reached = true;\n")
	var ie *goja.InterruptedError
	require.ErrorAs(t, err, &ie)
	assert.Nil(t, tc.debuggee.Runtime().Get("reached").Export())
}

func TestConsoleList(t *testing.T) {
	tc := newTestConsole(t, "list", "c")
	_, err := tc.debuggee.RunScript("list.js", "var a = 1;\ndebugger;\n")
	require.NoError(t, err)
	assert.Contains(t, tc.out.String(), "> 2\tdebugger;\n")
	assert.Contains(t, tc.out.String(), "  1\tvar a = 1;\n")
}

func TestConsoleClose(t *testing.T) {
	tc := newTestConsole(t, "c")
	require.NoError(t, tc.console.Close())
	assert.True(t, tc.reader.closed)

	// with the controller detached nobody handles the pause
	_, err := tc.debuggee.RunScript("closed.js", "debugger;")
	require.NoError(t, err)
	assert.Empty(t, tc.reader.prompts)
}
