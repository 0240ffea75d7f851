package gjsdb

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// SetupStage identifies the realm construction step that failed.
type SetupStage int

const (
	StageWrap SetupStage = iota + 1
	StageStdInit
	StageCapability
	StageBootstrap
	StageConstruct
)

func (s SetupStage) String() string {
	switch s {
	case StageWrap:
		return "wrap debuggee"
	case StageStdInit:
		return "init standard library"
	case StageCapability:
		return "install Debugger"
	case StageBootstrap:
		return "evaluate bootstrap script"
	case StageConstruct:
		return "construct DebuggerMultiplexer"
	default:
		return "unknown stage"
	}
}

// RealmSetupError is returned by NewRealm for every construction failure.
// Whether the failure is fatal is left to the caller.
type RealmSetupError struct {
	Stage SetupStage
	Err   error
}

func (e *RealmSetupError) Error() string {
	return fmt.Sprintf("gjsdb: %s: %v", e.Stage, e.Err)
}

func (e *RealmSetupError) Unwrap() error {
	return e.Err
}

// ArgumentCountError is thrown when a native function gets the wrong number of arguments.
type ArgumentCountError struct {
	Func string
	Want int
	Got  int
}

func (e *ArgumentCountError) Error() string {
	if e.Want == 1 {
		return fmt.Sprintf("Must pass a single argument to %s() (got %d)", e.Func, e.Got)
	}
	return fmt.Sprintf("%s() takes %d arguments (got %d)", e.Func, e.Want, e.Got)
}

// ArgumentTypeError is thrown when a native function argument has the wrong type.
type ArgumentTypeError struct {
	Func  string
	Param string
	Want  string
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s(): argument %q must be a %s", e.Func, e.Param, e.Want)
}

// FileReadError carries the OS error of a failed getFileContents call.
type FileReadError struct {
	Filename string
	Err      error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("Failed to load contents for filename %s: %v", e.Filename, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

var errTerminated = errors.New("debuggee terminated from the debugger")

// describeException extracts the error type and message of a thrown value.
func describeException(ex *goja.Exception) (errorType, message string) {
	val := ex.Value()
	if val == nil {
		return "Error", "Unknown error"
	}
	obj, ok := val.(*goja.Object)
	if !ok {
		return "Error", val.String()
	}
	errorType = "Error"
	if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
		errorType = name.String()
	}
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
		message = msg.String()
	} else {
		message = val.String()
	}
	return errorType, message
}

// exceptionText formats err for display in another runtime.
func exceptionText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		typ, msg := describeException(ex)
		return typ + ": " + msg
	}
	return err.Error()
}

// RemoteError is an exception raised by the runtime on the other side of a
// proxy, re-raised in the caller's runtime.
type RemoteError struct {
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Name + ": " + e.Message
}
