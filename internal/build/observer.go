package build

import (
	"fmt"
	"log"

	"github.com/go-logr/logr"
)

// Logger is the single message sink this core requires. It must be usable
// even when no real logger is wired up, so the zero value of every consumer
// falls back to the standard logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer receives progress during a build.
type Observer interface {
	Logger
}

// ConsoleObserver implements Observer using the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a new console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// LogrObserver adapts a logr.Logger to the Observer interface for callers
// that want structured output.
type LogrObserver struct {
	Logger logr.Logger
}

// NewLogrObserver creates an Observer backed by a logr.Logger.
func NewLogrObserver(logger logr.Logger) *LogrObserver {
	return &LogrObserver{Logger: logger}
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.Logger.Info(fmt.Sprintf(format, v...))
}

// printf is the nil-safe sink used throughout the pipeline.
func printf(o Observer, format string, v ...interface{}) {
	if o == nil {
		log.Printf(format, v...)
		return
	}
	o.Printf(format, v...)
}
