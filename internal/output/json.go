package output

import (
	"encoding/json"
	"io"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
)

type JSONFormatter struct {
	options *Options
}

func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (f *JSONFormatter) FormatRun(w io.Writer, res agent.Result, err error) error {
	return f.Format(w, model.NewRunResponse(res, err))
}
