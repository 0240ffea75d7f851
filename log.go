package gjsdb

import (
	"log/slog"
)

// logPrinter routes the console module of a runtime to a logger.
type logPrinter struct {
	logger *slog.Logger
}

func (p logPrinter) Log(s string) {
	p.logger.Info(s)
}

func (p logPrinter) Warn(s string) {
	p.logger.Warn(s)
}

func (p logPrinter) Error(s string) {
	p.logger.Error(s)
}
