// Package console is the interactive front-end of a debugger realm: it
// installs output and readline, and runs the command loop while the
// debuggee is paused.
package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dop251/goja"

	"github.com/dop251/gjsdb"
)

type Option interface {
	apply(*options)
}

type options struct {
	reader LineReader
	writer io.Writer
	prompt string
	color  bool
	logger *slog.Logger
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithInput sets where command lines come from. Defaults to a line editor
// on the terminal.
func WithInput(r LineReader) Option {
	return newFuncOption(func(o *options) {
		o.reader = r
	})
}

// WithOutput sets where output() writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return newFuncOption(func(o *options) {
		o.writer = w
	})
}

func WithPrompt(prompt string) Option {
	return newFuncOption(func(o *options) {
		o.prompt = prompt
	})
}

// WithColor enables ANSI colors in source listings.
func WithColor(color bool) Option {
	return newFuncOption(func(o *options) {
		o.color = color
	})
}

func WithLogger(logger *slog.Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

// Console connects a realm's multiplexer to a Session.
type Console struct {
	realm      *gjsdb.Realm
	io         *IO
	session    *Session
	controller *goja.Object
	reader     LineReader
}

// Setup installs the console natives into realm, creates the command
// controller and attaches it to the realm's multiplexer.
func Setup(realm *gjsdb.Realm, opts ...Option) (*Console, error) {
	o := options{
		writer: os.Stdout,
		prompt: gjsdb.DefaultPrompt,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.reader == nil {
		o.reader = NewTerminalReader()
	}
	mux := realm.Multiplexer()
	if mux == nil {
		return nil, errors.New("console: realm has no multiplexer")
	}

	rt := realm.Runtime()
	c := &Console{
		realm:  realm,
		io:     NewIO(rt, o.reader, o.writer, o.prompt, o.logger),
		reader: o.reader,
	}
	if err := c.io.FunctionSet().Install(rt); err != nil {
		return nil, err
	}

	state := rt.Get("DebuggerCommandState")
	if state == nil || goja.IsUndefined(state) {
		return nil, errors.New("console: DebuggerCommandState is not defined")
	}
	returnControl := state.ToObject(rt).Get("RETURN_CONTROL")
	if returnControl == nil {
		return nil, errors.New("console: DebuggerCommandState.RETURN_CONTROL is not defined")
	}
	ctor, ok := goja.AssertConstructor(rt.Get("DebuggerCommandController"))
	if !ok {
		return nil, errors.New("console: DebuggerCommandController is not a constructor")
	}

	handler := rt.ToValue(func(goja.FunctionCall) goja.Value {
		info, ok := realm.Debugger().CurrentPause()
		if !ok {
			return rt.ToValue(false)
		}
		c.session.HandlePause(info)
		return rt.ToValue(true)
	})
	controller, err := ctor(nil, handler, rt.ToValue(true))
	if err != nil {
		return nil, fmt.Errorf("console: creating command controller: %w", err)
	}
	handleInput, ok := goja.AssertFunction(controller.Get("handleInput"))
	if !ok {
		return nil, errors.New("console: command controller has no handleInput method")
	}
	attach, ok := goja.AssertFunction(controller.Get("attach"))
	if !ok {
		return nil, errors.New("console: command controller has no attach method")
	}
	if _, err := attach(controller, mux); err != nil {
		return nil, fmt.Errorf("console: attaching command controller: %w", err)
	}
	c.controller = controller

	dispatcher := &controllerDispatcher{
		rt:            rt,
		controller:    controller,
		handleInput:   handleInput,
		returnControl: returnControl,
	}
	c.session = NewSession(c.io, dispatcher, c.source, o.color, o.logger)
	return c, nil
}

func (c *Console) Session() *Session {
	return c.session
}

func (c *Console) IO() *IO {
	return c.io
}

// Close detaches the command controller and closes the line reader.
func (c *Console) Close() error {
	if detach, ok := goja.AssertFunction(c.controller.Get("detach")); ok {
		if _, err := detach(c.controller); err != nil {
			return err
		}
	}
	return c.reader.Close()
}

func (c *Console) source(url string) ([]string, bool) {
	if s := c.realm.Debuggee().Script(url); s != nil {
		lines := make([]string, 0, s.LineCount())
		for n := 1; n <= s.LineCount(); n++ {
			l, _ := s.Line(n)
			lines = append(lines, l)
		}
		return lines, true
	}
	src, err := c.realm.Helpers().GetFileContents(url)
	if err != nil {
		return nil, false
	}
	return strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n"), true
}

// controllerDispatcher feeds tokens to DebuggerCommandController.handleInput.
type controllerDispatcher struct {
	rt            *goja.Runtime
	controller    *goja.Object
	handleInput   goja.Callable
	returnControl goja.Value
}

func (d *controllerDispatcher) Dispatch(tokens []string) (Verdict, error) {
	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}
	res, err := d.handleInput(d.controller, d.rt.NewArray(args...))
	if err != nil {
		return Continue, err
	}
	if res.StrictEquals(d.returnControl) {
		return ReturnControl, nil
	}
	return Continue, nil
}
