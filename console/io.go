package console

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"github.com/peterh/liner"

	"github.com/dop251/gjsdb"
)

const outputFallback = "DEBUGGER ERROR: <cannot convert value to string>"

// IO implements the output and readline natives of the console.
type IO struct {
	rt      *goja.Runtime
	w       io.Writer
	reader  LineReader
	prompt  string
	history *History
	logger  *slog.Logger
	str     *gjsdb.Stringifier
}

func NewIO(rt *goja.Runtime, reader LineReader, w io.Writer, prompt string, logger *slog.Logger) *IO {
	return &IO{
		rt:      rt,
		w:       w,
		reader:  reader,
		prompt:  prompt,
		history: &History{},
		logger:  logger,
		str:     gjsdb.NewStringifier(rt),
	}
}

func (c *IO) History() *History {
	return c.history
}

// Output writes v converted to a string, without adding a newline. A value
// that cannot be converted is logged and dropped.
func (c *IO) Output(v goja.Value) error {
	text, err := c.str.ToText(v)
	if err != nil {
		c.logger.Error(outputFallback)
		return nil
	}
	return c.WriteString(text)
}

func (c *IO) WriteString(s string) error {
	_, err := io.WriteString(c.w, s)
	return err
}

// Readline prompts until it gets a line that is not blank. It returns false
// at end of input.
func (c *IO) Readline() (string, bool) {
	for {
		line, err := c.reader.Prompt(c.prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("reading console input failed", "error", err)
			}
			return "", false
		}
		line = strings.TrimSuffix(line, "\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.history.Append(line)
		c.reader.AppendHistory(line)
		return line, true
	}
}

func (c *IO) FunctionSet() gjsdb.FunctionSet {
	return gjsdb.FunctionSet{
		{Name: "output", Fn: func(call goja.FunctionCall) goja.Value {
			gjsdb.CheckArgumentCount(c.rt, "output", call, 1)
			if err := c.Output(call.Argument(0)); err != nil {
				c.logger.Error("console output failed", "error", err)
			}
			return goja.Undefined()
		}},
		{Name: "readline", Fn: func(call goja.FunctionCall) goja.Value {
			line, ok := c.Readline()
			if !ok {
				return goja.Undefined()
			}
			return c.rt.ToValue(line)
		}},
	}
}
