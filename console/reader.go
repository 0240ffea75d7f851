package console

import (
	"bufio"
	"io"

	"github.com/peterh/liner"
)

// LineReader is the source of command lines. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// NewTerminalReader returns a line editor on the controlling terminal.
// Ctrl-C aborts the current line instead of killing the process.
func NewTerminalReader() LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}

type scannerReader struct {
	sc   *bufio.Scanner
	echo io.Writer
}

// NewReader reads lines from r, for piped input. The prompt is written to
// echo unless echo is nil.
func NewReader(r io.Reader, echo io.Writer) LineReader {
	return &scannerReader{
		sc:   bufio.NewScanner(r),
		echo: echo,
	}
}

func (s *scannerReader) Prompt(prompt string) (string, error) {
	if s.echo != nil {
		if _, err := io.WriteString(s.echo, prompt); err != nil {
			return "", err
		}
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *scannerReader) AppendHistory(string) {}

func (s *scannerReader) Close() error {
	return nil
}
