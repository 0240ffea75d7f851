package gjsdb

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/dop251/goja"
)

// SupportedProtocol is the range of DebuggerProtocolVersion values a
// bootstrap script may declare.
const SupportedProtocol = "^1.0.0"

const multiplexerScriptName = "resource:///org/gjsdb/debugger/debuggerMultiplexer.js"

//go:embed bootstrap/debuggerMultiplexer.js
var multiplexerSource string

var protocolConstraint = mustConstraint(SupportedProtocol)

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}

func checkProtocol(v goja.Value) error {
	if v == nil || goja.IsUndefined(v) {
		return errors.New("bootstrap script does not declare DebuggerProtocolVersion")
	}
	ver, err := semver.NewVersion(v.String())
	if err != nil {
		return fmt.Errorf("invalid DebuggerProtocolVersion %q: %w", v.String(), err)
	}
	if !protocolConstraint.Check(ver) {
		return fmt.Errorf("debugger protocol %s is not supported (want %s)", ver, SupportedProtocol)
	}
	return nil
}
