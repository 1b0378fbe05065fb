package log

import (
	"fmt"
	"strings"
)

// Config declares a logger.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json or text
	// Outputs lists destinations: "console", "null" or a file path.
	Outputs          []string `json:"outputs" yaml:"outputs"`
	RedactKeys       []string `json:"redactKeys" yaml:"redactKeys"`
	SampleInitial    int      `json:"sampleInitial" yaml:"sampleInitial"`
	SampleThereafter int      `json:"sampleThereafter" yaml:"sampleThereafter"`
}

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, out := range cfg.Outputs {
		switch out {
		case "", "console", "stderr":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "null":
			opts = append(opts, WithOutput(&NullOutput{}))
		default:
			fo, err := NewFileOutput(out)
			if err != nil {
				return nil, fmt.Errorf("log: open output %q: %w", out, err)
			}
			opts = append(opts, WithOutput(fo))
		}
	}
	if len(cfg.RedactKeys) > 0 {
		opts = append(opts, WithRedactedKeys(cfg.RedactKeys...))
	}
	if cfg.SampleThereafter > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleThereafter))
	}
	return NewLogger(opts...), nil
}
