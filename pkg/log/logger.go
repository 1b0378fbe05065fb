package log

import (
	"log/slog"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l >= DebugLevel && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

func (l Level) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelOf(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return DebugLevel
	case l < slog.LevelWarn:
		return InfoLevel
	case l < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Fields maps keys to values on a formatted entry.
type Fields map[string]any

// ComponentKey tags the subsystem that emitted a line.
const ComponentKey = "component"

// Entry is what formatters and outputs receive.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the structured logger every txq component takes.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every line.
	With(fields ...Field) Logger
	WithComponent(component string) Logger

	Level() Level
}

// Formatter renders an entry to bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives every formatted entry.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// LoggerOption configures NewLogger.
type LoggerOption func(*pipeline)

// pipeline is shared by a logger and everything derived from it.
type pipeline struct {
	level     Level
	formatter Formatter
	outputs   []Output
	redact    map[string]struct{}
	sampler   *sampler
}

func WithLevel(level Level) LoggerOption {
	return func(p *pipeline) { p.level = level }
}

func WithFormatter(formatter Formatter) LoggerOption {
	return func(p *pipeline) { p.formatter = formatter }
}

// WithOutput adds an output; several may be combined.
func WithOutput(output Output) LoggerOption {
	return func(p *pipeline) { p.outputs = append(p.outputs, output) }
}

// WithRedactedKeys replaces the values of the named fields with [REDACTED].
func WithRedactedKeys(keys ...string) LoggerOption {
	return func(p *pipeline) {
		if p.redact == nil {
			p.redact = make(map[string]struct{}, len(keys))
		}
		for _, k := range keys {
			p.redact[k] = struct{}{}
		}
	}
}

// WithSampling keeps the first initial lines of each level+message and then
// every thereafter-th one.
func WithSampling(initial, thereafter int) LoggerOption {
	return func(p *pipeline) {
		if thereafter > 0 {
			p.sampler = newSampler(initial, thereafter)
		}
	}
}

// NewLogger builds a logger. Defaults: info level, JSON, stderr.
func NewLogger(options ...LoggerOption) Logger {
	p := &pipeline{level: InfoLevel, formatter: &JSONFormatter{}}
	for _, opt := range options {
		opt(p)
	}
	if len(p.outputs) == 0 {
		p.outputs = []Output{NewConsoleOutput()}
	}
	return &BaseLogger{p: p, slog: slog.New(&bridgeHandler{p: p})}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewLogger(WithLevel(ErrorLevel+1), WithOutput(NullOutput{}))
}
