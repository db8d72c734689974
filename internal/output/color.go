package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type ColorScheme struct {
	Node     func(format string, a ...interface{}) string
	Success  func(format string, a ...interface{}) string
	Error    func(format string, a ...interface{}) string
	Warning  func(format string, a ...interface{}) string
	Header   func(format string, a ...interface{}) string
	Duration func(format string, a ...interface{}) string
	Disabled bool
}

// NewColorScheme disables colors for non-terminal writers or when noColor
// is set.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !isTTY(w) {
		plain := color.New().Sprintf
		return &ColorScheme{
			Node:     plain,
			Success:  plain,
			Error:    plain,
			Warning:  plain,
			Header:   plain,
			Duration: plain,
			Disabled: true,
		}
	}

	return &ColorScheme{
		Node:     color.New(color.FgCyan, color.Bold).Sprintf,
		Success:  color.New(color.FgGreen).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Warning:  color.New(color.FgYellow).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Duration: color.New(color.FgBlue).Sprintf,
	}
}

func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func (cs *ColorScheme) StatusColor(failed bool) func(format string, a ...interface{}) string {
	if failed {
		return cs.Error
	}
	return cs.Success
}
