package logging

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

type Options struct {
	Level  string
	Format string
	Prefix string
	Output io.Writer
}

// New builds a leveled logger. Prefix follows the "[api]" convention of the binaries.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	formatter := log.TextFormatter
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		Formatter:       formatter,
	})
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func ParseLevel(value string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Event writes one structured entry with the given fields.
func Event(logger *log.Logger, level log.Level, msg string, fields map[string]any) {
	if logger == nil {
		return
	}
	keyvals := make([]any, 0, len(fields)*2)
	for _, key := range sortedKeys(fields) {
		keyvals = append(keyvals, key, fields[key])
	}
	logger.Log(level, msg, keyvals...)
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
