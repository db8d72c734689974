// Package output renders command results and cluster state for the CLI as
// a table, JSON or YAML.
package output

import (
	"fmt"
	"io"

	"cloudlab-agent/internal/pkg/agent"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts "", "table", "json" and "yaml".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

type Formatter interface {
	// Format writes an arbitrary value.
	Format(w io.Writer, data interface{}) error

	// FormatRun writes the outcome of one dispatch. res may be nil when the
	// target was rejected.
	FormatRun(w io.Writer, res agent.Result, err error) error
}

type Option func(*Options)

type Options struct {
	NoColor   bool
	NoHeaders bool
	// Wide prints every captured line instead of the last one.
	Wide bool
}

func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

func WithWide(wide bool) Option {
	return func(o *Options) {
		o.Wide = wide
	}
}

func NewFormatter(format Format, opts ...Option) Formatter {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
