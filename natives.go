package gjsdb

import (
	"log/slog"
	"os"

	"github.com/dop251/goja"
)

const (
	coverageWarningPrefix = "JS COVERAGE WARNING: "
	warningFallback       = "JS LOG: <cannot convert value to string>"
)

// FunctionSpec is one native function of a FunctionSet.
type FunctionSpec struct {
	Name string
	Fn   func(goja.FunctionCall) goja.Value
}

// FunctionSet is a fixed, ordered table of native functions.
type FunctionSet []FunctionSpec

// Install defines every function of the set as a global of rt.
func (s FunctionSet) Install(rt *goja.Runtime) error {
	for _, f := range s {
		if err := rt.Set(f.Name, f.Fn); err != nil {
			return err
		}
	}
	return nil
}

func (s FunctionSet) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// ThrowError raises err as a script exception of rt. Script code sees its
// message; Go code can recover err from the exception value.
func ThrowError(rt *goja.Runtime, err error) {
	panic(rt.NewGoError(err))
}

// CheckArgumentCount throws an ArgumentCountError unless call has exactly want arguments.
func CheckArgumentCount(rt *goja.Runtime, name string, call goja.FunctionCall, want int) {
	if len(call.Arguments) != want {
		ThrowError(rt, &ArgumentCountError{Func: name, Want: want, Got: len(call.Arguments)})
	}
}

// Stringifier converts values with the String builtin of the runtime it was
// created for. A throwing conversion is returned as an error and leaves no
// pending exception behind.
type Stringifier struct {
	str goja.Callable
}

// NewStringifier captures the String builtin of rt. If script has already
// replaced it with something that is not callable, values are converted
// directly and a throwing conversion is still returned as an error.
func NewStringifier(rt *goja.Runtime) *Stringifier {
	str, ok := goja.AssertFunction(rt.GlobalObject().Get("String"))
	if !ok {
		str = func(_ goja.Value, args ...goja.Value) (res goja.Value, err error) {
			defer func() {
				if x := recover(); x != nil {
					ex, ok := x.(*goja.Exception)
					if !ok {
						panic(x)
					}
					err = ex
				}
			}()
			return rt.ToValue(args[0].String()), nil
		}
	}
	return &Stringifier{str: str}
}

func (s *Stringifier) ToText(v goja.Value) (string, error) {
	res, err := s.str(goja.Undefined(), v)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// Helpers implements the native functions every debugger realm gets.
type Helpers struct {
	rt     *goja.Runtime
	logger *slog.Logger
	str    *Stringifier
}

func NewHelpers(rt *goja.Runtime, logger *slog.Logger) *Helpers {
	return &Helpers{
		rt:     rt,
		logger: logger,
		str:    NewStringifier(rt),
	}
}

// Warning logs v at warning level. If v cannot be converted to a string a
// fixed message is logged instead.
func (h *Helpers) Warning(v goja.Value) {
	text, err := h.str.ToText(v)
	if err != nil {
		h.logger.Warn(warningFallback)
		return
	}
	h.logger.Warn(coverageWarningPrefix + text)
}

// GetFileContents returns the contents of filename unchanged.
func (h *Helpers) GetFileContents(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", &FileReadError{Filename: filename, Err: err}
	}
	return string(b), nil
}

func (h *Helpers) FunctionSet() FunctionSet {
	return FunctionSet{
		{Name: "warning", Fn: func(call goja.FunctionCall) goja.Value {
			CheckArgumentCount(h.rt, "warning", call, 1)
			h.Warning(call.Argument(0))
			return goja.Undefined()
		}},
		{Name: "getFileContents", Fn: func(call goja.FunctionCall) goja.Value {
			filename, ok := call.Argument(0).Export().(string)
			if len(call.Arguments) != 1 || !ok {
				ThrowError(h.rt, &ArgumentTypeError{Func: "getFileContents", Param: "filename", Want: "string"})
			}
			contents, err := h.GetFileContents(filename)
			if err != nil {
				ThrowError(h.rt, err)
			}
			return h.rt.ToValue(contents)
		}},
	}
}
