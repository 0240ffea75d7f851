package gjsdb

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
)

// PauseKind says why the debuggee stopped.
type PauseKind int

const (
	PauseBreakpoint PauseKind = iota + 1
	PauseStep
	PauseDebuggerStatement
	PauseRequest
	PauseException
	PauseEntry
)

func (k PauseKind) String() string {
	switch k {
	case PauseBreakpoint:
		return "breakpoint"
	case PauseStep:
		return "step"
	case PauseDebuggerStatement:
		return "debugger"
	case PauseRequest:
		return "pause"
	case PauseException:
		return "exception"
	case PauseEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// ResumeMode is what the debuggee does when a pause ends.
type ResumeMode int

const (
	ResumeContinue ResumeMode = iota
	ResumeStepIn
	ResumeStepOver
	ResumeStepOut
)

func (m ResumeMode) String() string {
	switch m {
	case ResumeStepIn:
		return "stepIn"
	case ResumeStepOver:
		return "stepOver"
	case ResumeStepOut:
		return "stepOut"
	default:
		return "continue"
	}
}

// PauseInfo describes a pause. URL and Line are source coordinates; when a
// source map applies, GeneratedURL and GeneratedLine hold the position in the
// script that actually ran.
type PauseInfo struct {
	Kind          PauseKind
	URL           string
	Line          int
	Column        int
	FunctionName  string
	Breakpoint    int
	Message       string
	GeneratedURL  string
	GeneratedLine int
}

// Breakpoint is either a line breakpoint (URL and Line) or a function
// breakpoint (FunctionName). A URL of the form /re/ is a regular expression.
type Breakpoint struct {
	ID           int
	URL          string
	Line         int
	FunctionName string
	Condition    string
	Hits         int

	pattern *regexp2.Regexp
}

func (bp *Breakpoint) String() string {
	var loc string
	if bp.FunctionName != "" {
		loc = bp.FunctionName + "()"
	} else {
		loc = fmt.Sprintf("%s:%d", bp.URL, bp.Line)
	}
	if bp.Condition != "" {
		loc += " if " + bp.Condition
	}
	return fmt.Sprintf("Breakpoint %d at %s (hits: %d)", bp.ID, loc, bp.Hits)
}

func (bp *Breakpoint) matchURL(url string) bool {
	if bp.pattern != nil {
		ok, err := bp.pattern.MatchString(url)
		return err == nil && ok
	}
	return url == bp.URL || strings.HasSuffix(url, "/"+bp.URL)
}

// matchSite reports whether a line breakpoint covers site, either in source
// coordinates or, for source-mapped scripts, in generated ones.
func (bp *Breakpoint) matchSite(site *Site) bool {
	url, line, _ := site.Location()
	if bp.Line == line && bp.matchURL(url) {
		return true
	}
	return site.Script.srcMap != nil && bp.Line == site.Pos.Line && bp.matchURL(site.Script.URL)
}

// PauseHandler is called on the debuggee's goroutine while the debuggee is
// suspended. The debuggee resumes when it returns.
type PauseHandler func(PauseInfo)

// Debugger observes and controls one Debuggee.
type Debugger struct {
	debuggee *Debuggee
	logger   *slog.Logger
	handler  PauseHandler

	breakpoints []*Breakpoint
	nextID      int

	pauseRequested atomic.Bool
	entryPending   bool

	mode      ResumeMode
	stepDepth int
	stepSite  *Site
	terminate bool

	paused    bool
	current   PauseInfo
	busy      bool
	lastSite  *Site
	prevSite  *Site
	prevDepth int
}

// NewDebugger attaches a debugger to d. A debuggee has at most one debugger.
func NewDebugger(d *Debuggee, logger *slog.Logger) (*Debugger, error) {
	if d.debugger != nil {
		return nil, fmt.Errorf("debuggee already has a debugger attached")
	}
	if logger == nil {
		logger = d.logger
	}
	dbg := &Debugger{
		debuggee: d,
		logger:   logger,
	}
	d.debugger = dbg
	return dbg, nil
}

// Detach disconnects the debugger from its debuggee. Breakpoints stop firing.
func (dbg *Debugger) Detach() {
	if dbg.debuggee.debugger == dbg {
		dbg.debuggee.debugger = nil
	}
	dbg.handler = nil
}

// Debuggee returns the observed debuggee.
func (dbg *Debugger) Debuggee() *Debuggee {
	return dbg.debuggee
}

// SetHandler sets the function called on every pause.
func (dbg *Debugger) SetHandler(h PauseHandler) {
	dbg.handler = h
}

// SetStopOnEntry makes the debuggee pause at the first statement it runs.
func (dbg *Debugger) SetStopOnEntry(stop bool) {
	dbg.entryPending = stop
}

// SetBreakpoint adds a line breakpoint and returns its ID.
func (dbg *Debugger) SetBreakpoint(url string, line int, condition string) (int, error) {
	if line < 1 {
		return 0, fmt.Errorf("invalid line number %d", line)
	}
	bp := &Breakpoint{URL: url, Line: line, Condition: condition}
	if len(url) > 2 && strings.HasPrefix(url, "/") && strings.HasSuffix(url, "/") {
		re, err := regexp2.Compile(url[1:len(url)-1], regexp2.ECMAScript)
		if err != nil {
			return 0, fmt.Errorf("invalid breakpoint pattern %s: %w", url, err)
		}
		bp.pattern = re
	}
	return dbg.add(bp), nil
}

// SetFunctionBreakpoint adds a breakpoint on entry to any function called name.
func (dbg *Debugger) SetFunctionBreakpoint(name, condition string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty function name")
	}
	return dbg.add(&Breakpoint{FunctionName: name, Condition: condition}), nil
}

func (dbg *Debugger) add(bp *Breakpoint) int {
	dbg.nextID++
	bp.ID = dbg.nextID
	dbg.breakpoints = append(dbg.breakpoints, bp)
	dbg.logger.Debug("breakpoint set", "id", bp.ID, "url", bp.URL, "line", bp.Line, "function", bp.FunctionName)
	return bp.ID
}

// ClearBreakpoint removes a breakpoint. It reports whether id existed.
func (dbg *Debugger) ClearBreakpoint(id int) bool {
	for i, bp := range dbg.breakpoints {
		if bp.ID == id {
			dbg.breakpoints = append(dbg.breakpoints[:i], dbg.breakpoints[i+1:]...)
			return true
		}
	}
	return false
}

// Breakpoints returns the breakpoints ordered by ID.
func (dbg *Debugger) Breakpoints() []*Breakpoint {
	return append([]*Breakpoint(nil), dbg.breakpoints...)
}

// Resume sets how the debuggee continues when the current pause ends.
func (dbg *Debugger) Resume(mode ResumeMode) {
	dbg.mode = mode
}

// ResumeMode returns the mode set for the current pause.
func (dbg *Debugger) ResumeMode() ResumeMode {
	return dbg.mode
}

// Pause asks the debuggee to stop at its next statement. It is safe to call
// from any goroutine.
func (dbg *Debugger) Pause() {
	dbg.pauseRequested.Store(true)
}

// Terminate stops the debuggee when the current pause ends, or at once if it
// is running.
func (dbg *Debugger) Terminate() {
	if dbg.paused {
		dbg.terminate = true
		return
	}
	dbg.debuggee.Interrupt(errTerminated)
}

// Paused reports whether the debuggee is suspended in a pause handler.
func (dbg *Debugger) Paused() bool {
	return dbg.paused
}

// CurrentPause returns the pause being handled, if any.
func (dbg *Debugger) CurrentPause() (PauseInfo, bool) {
	return dbg.current, dbg.paused
}

// Frames returns the debuggee call stack, innermost first.
func (dbg *Debugger) Frames() []Frame {
	return dbg.debuggee.Frames()
}

// Evaluate runs expr in the debuggee's global scope. Statements executed by
// the evaluation never pause.
func (dbg *Debugger) Evaluate(expr string) (goja.Value, error) {
	busy := dbg.busy
	dbg.busy = true
	defer func() {
		dbg.busy = busy
	}()
	return dbg.debuggee.rt.RunString(expr)
}

func (dbg *Debugger) onStatement(site *Site) {
	if dbg.paused || dbg.busy {
		return
	}
	stack := dbg.debuggee.stack()
	depth := len(stack)
	lineEntry := dbg.prevDepth != depth || leftLine(dbg.prevSite, site)
	dbg.prevSite, dbg.prevDepth = site, depth
	dbg.lastSite = site

	funcName := ""
	if len(stack) > 0 {
		funcName = stack[0].FuncName()
	}

	info := dbg.check(site, depth, funcName, lineEntry)
	if info.Kind == 0 {
		return
	}
	if info.FunctionName == "" {
		info.FunctionName = funcName
	}
	dbg.locate(&info, site)
	dbg.pause(info)

	dbg.stepDepth, dbg.stepSite = depth, site
	if dbg.terminate {
		dbg.terminate = false
		dbg.debuggee.Interrupt(errTerminated)
	}
}

func (dbg *Debugger) check(site *Site, depth int, funcName string, lineEntry bool) PauseInfo {
	if dbg.pauseRequested.Swap(false) {
		return PauseInfo{Kind: PauseRequest}
	}
	if dbg.entryPending {
		dbg.entryPending = false
		return PauseInfo{Kind: PauseEntry}
	}
	if site.Kind == SiteDebugger {
		return PauseInfo{Kind: PauseDebuggerStatement}
	}
	if bp := dbg.hitBreakpoint(site, funcName, lineEntry); bp != nil {
		bp.Hits++
		return PauseInfo{Kind: PauseBreakpoint, Breakpoint: bp.ID}
	}
	stepped := false
	switch dbg.mode {
	case ResumeStepIn:
		stepped = depth != dbg.stepDepth || leftLine(dbg.stepSite, site)
	case ResumeStepOver:
		stepped = depth < dbg.stepDepth || depth == dbg.stepDepth && leftLine(dbg.stepSite, site)
	case ResumeStepOut:
		stepped = depth < dbg.stepDepth
	}
	if stepped {
		return PauseInfo{Kind: PauseStep}
	}
	return PauseInfo{}
}

// leftLine reports whether execution moved from prev to a different line, or
// came back to the same line through a loop.
func leftLine(prev, site *Site) bool {
	return prev == nil || prev.Script != site.Script || prev.Pos.Line != site.Pos.Line || site.ID <= prev.ID
}

func (dbg *Debugger) hitBreakpoint(site *Site, funcName string, lineEntry bool) *Breakpoint {
	if len(dbg.breakpoints) == 0 {
		return nil
	}
	for _, bp := range dbg.breakpoints {
		if bp.FunctionName != "" {
			if !site.FuncEntry || bp.FunctionName != funcName {
				continue
			}
		} else if !lineEntry || !bp.matchSite(site) {
			continue
		}
		if bp.Condition != "" && !dbg.condition(bp) {
			continue
		}
		return bp
	}
	return nil
}

func (dbg *Debugger) condition(bp *Breakpoint) bool {
	v, err := dbg.Evaluate(bp.Condition)
	if err != nil {
		dbg.logger.Warn("breakpoint condition failed", "id", bp.ID, "condition", bp.Condition, "error", err)
		return true
	}
	return v.ToBoolean()
}

func (dbg *Debugger) locate(info *PauseInfo, site *Site) {
	info.URL, info.Line, info.Column = site.Location()
	if info.URL != site.Script.URL || info.Line != site.Pos.Line {
		info.GeneratedURL = site.Script.URL
		info.GeneratedLine = site.Pos.Line
	}
}

func (dbg *Debugger) pause(info PauseInfo) {
	dbg.paused = true
	dbg.current = info
	dbg.mode = ResumeContinue
	defer func() {
		dbg.paused = false
		dbg.current = PauseInfo{}
	}()
	dbg.logger.Debug("debuggee paused", "what", info.Kind, "url", info.URL, "line", info.Line)
	if dbg.handler != nil {
		dbg.handler(info)
	}
}

// reportException gives the handler a look at an uncaught exception after
// the script has unwound.
func (dbg *Debugger) reportException(ex *goja.Exception) {
	if dbg.paused || dbg.handler == nil {
		return
	}
	typ, msg := describeException(ex)
	info := PauseInfo{
		Kind:    PauseException,
		Message: "Uncaught " + typ + ": " + msg,
	}
	if dbg.lastSite != nil {
		dbg.locate(&info, dbg.lastSite)
		info.FunctionName = dbg.lastSite.FuncName
	}
	dbg.pause(info)
	dbg.mode = ResumeContinue
	dbg.terminate = false
	dbg.prevSite = nil
}
