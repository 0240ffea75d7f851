package gjsdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects pauses and answers each with the next scripted mode.
type recorder struct {
	pauses []PauseInfo
	modes  []ResumeMode
	onStop func(dbg *Debugger, info PauseInfo)
}

func newTestDebugger(t *testing.T) (*Debuggee, *Debugger, *recorder) {
	t.Helper()
	d := newTestDebuggee(t)
	dbg, err := NewDebugger(d, nil)
	require.NoError(t, err)
	rec := &recorder{}
	dbg.SetHandler(func(info PauseInfo) {
		rec.pauses = append(rec.pauses, info)
		if rec.onStop != nil {
			rec.onStop(dbg, info)
		}
		if len(rec.modes) > 0 {
			dbg.Resume(rec.modes[0])
			rec.modes = rec.modes[1:]
		}
	})
	return d, dbg, rec
}

func (rec *recorder) lines() []int {
	lines := make([]int, len(rec.pauses))
	for i, p := range rec.pauses {
		lines[i] = p.Line
	}
	return lines
}

func TestSecondDebuggerRejected(t *testing.T) {
	d, _, _ := newTestDebugger(t)
	_, err := NewDebugger(d, nil)
	assert.Error(t, err)
}

func TestLineBreakpointOncePerLine(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	id, err := dbg.SetBreakpoint("once.js", 1, "")
	require.NoError(t, err)

	_, err = d.RunScript("once.js", "var a = 1; var b = 2;\nvar c = 3;")
	require.NoError(t, err)

	require.Len(t, rec.pauses, 1)
	p := rec.pauses[0]
	assert.Equal(t, PauseBreakpoint, p.Kind)
	assert.Equal(t, id, p.Breakpoint)
	assert.Equal(t, "once.js", p.URL)
	assert.Equal(t, 1, p.Line)
	assert.Equal(t, 1, p.Column)
	assert.Equal(t, 1, dbg.Breakpoints()[0].Hits)
}

func TestLineBreakpointInLoop(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("loop.js", 3, "")
	require.NoError(t, err)

	_, err = d.RunScript("loop.js", "var sum = 0;\nfor (var i = 0; i < 5; i++) {\n  sum += i;\n}\n")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 3, 3}, rec.lines())
}

func TestLineBreakpointOnIfStatement(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("if.js", 3, "")
	require.NoError(t, err)

	_, err = d.RunScript("if.js", "var n = 0;\nfor (var i = 0; i < 3; i++) {\n  if (i % 2) {\n    n++;\n  } else {\n    n += 10;\n  }\n}\n")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3}, rec.lines())
	assert.Equal(t, int64(21), d.Runtime().Get("n").ToInteger())
}

func TestLineBreakpointAfterLineComment(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("c.js", 2, "")
	require.NoError(t, err)

	_, err = d.RunScript("c.js", "var a = 1; // call it (\nvar b = 2;\n")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, rec.lines())
}

func TestConditionalBreakpoint(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("cond.js", 3, "i === 3")
	require.NoError(t, err)

	var sum goja.Value
	rec.onStop = func(dbg *Debugger, _ PauseInfo) {
		v, err := dbg.Evaluate("sum")
		require.NoError(t, err)
		sum = v
	}
	_, err = d.RunScript("cond.js", "var sum = 0;\nfor (var i = 0; i < 5; i++) {\n  sum += i;\n}\n")
	require.NoError(t, err)

	require.Len(t, rec.pauses, 1)
	assert.Equal(t, int64(3), sum.ToInteger())
	assert.Equal(t, 1, dbg.Breakpoints()[0].Hits)
}

func TestBrokenConditionStops(t *testing.T) {
	logger, buf := newTestLogger()
	d := NewDebuggee(WithLogger(logger))
	dbg, err := NewDebugger(d, nil)
	require.NoError(t, err)
	hits := 0
	dbg.SetHandler(func(PauseInfo) { hits++ })

	_, err = dbg.SetBreakpoint("broken.js", 1, "nope(")
	require.NoError(t, err)
	_, err = d.RunScript("broken.js", "var a = 1;")
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	assert.Contains(t, buf.String(), "breakpoint condition failed")
}

func TestFunctionBreakpoint(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	id, err := dbg.SetFunctionBreakpoint("f", "")
	require.NoError(t, err)

	_, err = d.RunScript("func.js", "function f() { return 1; }\nf();\nf();\n")
	require.NoError(t, err)

	require.Len(t, rec.pauses, 2)
	for _, p := range rec.pauses {
		assert.Equal(t, PauseBreakpoint, p.Kind)
		assert.Equal(t, id, p.Breakpoint)
		assert.Equal(t, "f", p.FunctionName)
		assert.Equal(t, 1, p.Line)
	}
	assert.Equal(t, 2, dbg.Breakpoints()[0].Hits)
}

func TestBreakpointURLMatching(t *testing.T) {
	tests := []struct {
		bp   string
		url  string
		want bool
	}{
		{"lib/mod.js", "lib/mod.js", true},
		{"mod.js", "lib/mod.js", true},
		{"od.js", "lib/mod.js", false},
		{`/mod\.js$/`, "lib/mod.js", true},
		{`/^mod/`, "lib/mod.js", false},
	}
	_, dbg, _ := newTestDebugger(t)
	for _, tt := range tests {
		id, err := dbg.SetBreakpoint(tt.bp, 1, "")
		require.NoError(t, err)
		bp := dbg.Breakpoints()[len(dbg.Breakpoints())-1]
		require.Equal(t, id, bp.ID)
		if got := bp.matchURL(tt.url); got != tt.want {
			t.Errorf("breakpoint %s matches %s = %v, want %v", tt.bp, tt.url, got, tt.want)
		}
	}

	_, err := dbg.SetBreakpoint(`/(/`, 1, "")
	assert.Error(t, err)
	_, err = dbg.SetBreakpoint("a.js", 0, "")
	assert.Error(t, err)
	_, err = dbg.SetFunctionBreakpoint("", "")
	assert.Error(t, err)
}

func TestClearBreakpoint(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	id, err := dbg.SetBreakpoint("clear.js", 1, "")
	require.NoError(t, err)
	assert.True(t, dbg.ClearBreakpoint(id))
	assert.False(t, dbg.ClearBreakpoint(id))

	_, err = d.RunScript("clear.js", "var a = 1;")
	require.NoError(t, err)
	assert.Empty(t, rec.pauses)
}

func TestBreakpointString(t *testing.T) {
	bp := &Breakpoint{ID: 2, URL: "a.js", Line: 3, Condition: "x > 1", Hits: 4}
	assert.Equal(t, "Breakpoint 2 at a.js:3 if x > 1 (hits: 4)", bp.String())
	bp = &Breakpoint{ID: 1, FunctionName: "main"}
	assert.Equal(t, "Breakpoint 1 at main() (hits: 0)", bp.String())
}

const stepScript = `function inner() {
  return 1;
}
function outer() {
  var x = inner();
  return x + 1;
}
outer();
var done = true;
`

func TestStepping(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	dbg.SetStopOnEntry(true)
	rec.modes = []ResumeMode{ResumeStepIn, ResumeStepIn, ResumeStepOut, ResumeStepOver, ResumeContinue}

	_, err := d.RunScript("step.js", stepScript)
	require.NoError(t, err)

	assert.Equal(t, []int{8, 5, 2, 6, 9}, rec.lines())
	assert.Equal(t, PauseEntry, rec.pauses[0].Kind)
	for _, p := range rec.pauses[1:] {
		assert.Equal(t, PauseStep, p.Kind)
	}
	assert.Equal(t, "inner", rec.pauses[2].FunctionName)
}

func TestStepOverSkipsCalls(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	dbg.SetStopOnEntry(true)
	rec.modes = []ResumeMode{ResumeStepOver, ResumeStepOver}

	_, err := d.RunScript("over.js", stepScript)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, rec.lines())
}

func TestStepOverLoop(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("loop.js", 2, "")
	require.NoError(t, err)
	rec.modes = []ResumeMode{ResumeStepOver, ResumeStepOver, ResumeStepOver}
	rec.onStop = func(dbg *Debugger, _ PauseInfo) {
		dbg.ClearBreakpoint(1)
	}

	_, err = d.RunScript("loop.js", "for (var i = 0; i < 3; i++) {\n  i;\n}\n")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, rec.lines())
	assert.Equal(t, PauseBreakpoint, rec.pauses[0].Kind)
	assert.Equal(t, PauseStep, rec.pauses[1].Kind)
	assert.Equal(t, PauseStep, rec.pauses[2].Kind)
}

func TestDebuggerStatement(t *testing.T) {
	d, _, rec := newTestDebugger(t)
	_, err := d.RunScript("stmt.js", "var a = 1;\ndebugger;\nvar b = 2;\n")
	require.NoError(t, err)

	require.Len(t, rec.pauses, 1)
	assert.Equal(t, PauseDebuggerStatement, rec.pauses[0].Kind)
	assert.Equal(t, 2, rec.pauses[0].Line)
}

func TestPauseRequest(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	dbg.Pause()
	_, err := d.RunScript("req.js", "var a = 1;\nvar b = 2;\n")
	require.NoError(t, err)

	require.Len(t, rec.pauses, 1)
	assert.Equal(t, PauseRequest, rec.pauses[0].Kind)
	assert.Equal(t, 1, rec.pauses[0].Line)
}

func TestUncaughtException(t *testing.T) {
	d, _, rec := newTestDebugger(t)
	_, err := d.RunScript("boom.js", "function boom() {\n  throw new TypeError(\"bad\");\n}\nboom();\n")
	var ex *goja.Exception
	require.ErrorAs(t, err, &ex)

	require.Len(t, rec.pauses, 1)
	p := rec.pauses[0]
	assert.Equal(t, PauseException, p.Kind)
	assert.Equal(t, "Uncaught TypeError: bad", p.Message)
	assert.Equal(t, 2, p.Line)
	assert.Equal(t, "boom", p.FunctionName)
}

func TestTerminate(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("term.js", 2, "")
	require.NoError(t, err)
	rec.onStop = func(dbg *Debugger, _ PauseInfo) {
		dbg.Terminate()
	}

	_, err = d.RunScript("term.js", "var a = 1;\nvar reached = true;\n")
	var ie *goja.InterruptedError
	require.ErrorAs(t, err, &ie)
	assert.True(t, errors.Is(ie.Value().(error), errTerminated))
	assert.Nil(t, d.Runtime().Get("reached").Export())

	// the runtime accepts new scripts afterwards
	v, err := d.RunScript("after.js", "a + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestFramesAndCurrentPause(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetFunctionBreakpoint("g", "")
	require.NoError(t, err)

	var frames []Frame
	var current PauseInfo
	var paused bool
	rec.onStop = func(dbg *Debugger, _ PauseInfo) {
		frames = dbg.Frames()
		current, paused = dbg.CurrentPause()
	}
	_, err = d.RunScript("frames.js", "function f() {\n  return g();\n}\nfunction g() {\n  return 1;\n}\nf();\n")
	require.NoError(t, err)

	require.Len(t, frames, 3)
	assert.Equal(t, "g", frames[0].FunctionName)
	assert.Equal(t, 5, frames[0].Line)
	assert.Equal(t, 3, frames[0].Column)
	assert.Equal(t, "f", frames[1].FunctionName)
	assert.Equal(t, 2, frames[1].Line)
	assert.Equal(t, "frames.js", frames[2].URL)
	assert.Equal(t, 7, frames[2].Line)

	assert.True(t, paused)
	assert.Equal(t, rec.pauses[0], current)
	_, paused = dbg.CurrentPause()
	assert.False(t, paused)
	assert.False(t, dbg.Paused())
}

func TestEvaluateDoesNotPause(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := d.RunScript("defs.js", "function f() {\n  return 41;\n}\n")
	require.NoError(t, err)
	_, err = dbg.SetFunctionBreakpoint("f", "")
	require.NoError(t, err)

	v, err := dbg.Evaluate("f() + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())
	assert.Empty(t, rec.pauses)

	_, err = dbg.Evaluate("nope(")
	assert.Error(t, err)
}

func TestDetach(t *testing.T) {
	d, dbg, rec := newTestDebugger(t)
	_, err := dbg.SetBreakpoint("detach.js", 1, "")
	require.NoError(t, err)
	dbg.Detach()
	assert.Nil(t, d.Debugger())

	_, err = d.RunScript("detach.js", "var a = 1;")
	require.NoError(t, err)
	assert.Empty(t, rec.pauses)

	_, err = NewDebugger(d, nil)
	assert.NoError(t, err, "a detached debuggee accepts a new debugger")
}

func TestPauseKindNames(t *testing.T) {
	var names []string
	for k := PauseBreakpoint; k <= PauseEntry; k++ {
		names = append(names, k.String())
	}
	assert.Equal(t, "breakpoint step debugger pause exception entry", strings.Join(names, " "))
	assert.Equal(t, "stepOver", ResumeStepOver.String())
}
