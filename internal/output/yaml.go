package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
)

type YAMLFormatter struct {
	options *Options
}

func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

func (f *YAMLFormatter) FormatRun(w io.Writer, res agent.Result, err error) error {
	return f.Format(w, model.NewRunResponse(res, err))
}
