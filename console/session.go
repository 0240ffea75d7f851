package console

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/gjsdb"
)

// State is the position of a Session in its pause cycle.
type State int

const (
	AwaitingPause State = iota
	Prompting
	Dispatching
	Released
)

func (s State) String() string {
	switch s {
	case AwaitingPause:
		return "AWAITING_PAUSE"
	case Prompting:
		return "PROMPTING"
	case Dispatching:
		return "DISPATCHING"
	case Released:
		return "RELEASED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Verdict is the outcome of one dispatched command line.
type Verdict int

const (
	// Continue keeps the console prompting.
	Continue Verdict = iota
	// ReturnControl ends the pause cycle and lets the debuggee run.
	ReturnControl
)

func (v Verdict) String() string {
	if v == ReturnControl {
		return "RETURN_CONTROL"
	}
	return "CONTINUE"
}

// Dispatcher executes one tokenized command line. tokens is never empty.
type Dispatcher interface {
	Dispatch(tokens []string) (Verdict, error)
}

// Terminal is the console I/O a Session needs. *IO implements it.
type Terminal interface {
	WriteString(s string) error
	Readline() (string, bool)
}

// SourceFunc returns the lines of the script at url.
type SourceFunc func(url string) ([]string, bool)

// Session runs the read-dispatch loop for each pause.
type Session struct {
	term       Terminal
	dispatcher Dispatcher
	source     SourceFunc
	color      bool
	logger     *slog.Logger

	state    State
	message  string
	lastLine string
	tokens   []string
}

func NewSession(term Terminal, dispatcher Dispatcher, source SourceFunc, color bool, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		term:       term,
		dispatcher: dispatcher,
		source:     source,
		color:      color,
		logger:     logger,
	}
}

// State returns the current state. Between pauses it is Released (or
// AwaitingPause before the first pause).
func (s *Session) State() State {
	return s.state
}

// LastLine returns the most recently read command line.
func (s *Session) LastLine() string {
	return s.lastLine
}

// HandlePause reports the pause once, then reads and dispatches command
// lines until a command returns ReturnControl or input ends.
func (s *Session) HandlePause(info gjsdb.PauseInfo) {
	s.state = Prompting
	s.message = s.report(info)
	if err := s.term.WriteString(s.message); err != nil {
		s.logger.Error("writing pause report failed", "error", err)
	}
	for {
		line, ok := s.term.Readline()
		if !ok {
			s.logger.Debug("end of console input, returning control")
			break
		}
		s.lastLine = line
		s.tokens = strings.Fields(line)

		s.state = Dispatching
		verdict, err := s.dispatcher.Dispatch(s.tokens)
		if err != nil {
			s.logger.Debug("command failed", "line", line, "error", err)
			if werr := s.term.WriteString(fmt.Sprintf("Command failed: %s\n", err)); werr != nil {
				s.logger.Error("writing console output failed", "error", werr)
			}
			verdict = Continue
		}
		if verdict == ReturnControl {
			break
		}
		s.state = Prompting
	}
	s.state = Released
	s.message = ""
	s.tokens = nil
}

func (s *Session) report(info gjsdb.PauseInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Received %s (program stopped at %s:%d)\n", info.Kind, info.URL, info.Line)
	if info.Breakpoint != 0 {
		fmt.Fprintf(&b, "Breakpoint %d", info.Breakpoint)
		if info.FunctionName != "" {
			fmt.Fprintf(&b, ", %s()", info.FunctionName)
		}
		b.WriteString("\n")
	}
	if info.Message != "" {
		b.WriteString(info.Message + "\n")
	}
	if s.source != nil {
		if lines, ok := s.source(info.URL); ok && info.Line >= 1 && info.Line <= len(lines) {
			b.WriteString(Listing(lines, info.Line, s.color))
		}
	}
	return b.String()
}
