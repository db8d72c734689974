package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/history"
)

type TableFormatter struct {
	options *Options
}

func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	colors := NewColorScheme(w, f.options.NoColor)

	switch v := data.(type) {
	case *model.ClusterInfo:
		return f.formatCluster(w, v, colors)
	case []history.Entry:
		return f.formatHistory(w, v, colors)
	case string:
		fmt.Fprintln(w, v)
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatRun prints one row per node followed by the captured output of
// each node.
func (f *TableFormatter) FormatRun(w io.Writer, res agent.Result, err error) error {
	colors := NewColorScheme(w, f.options.NoColor)

	var results []*agent.CommandResult
	switch r := res.(type) {
	case *agent.CommandResult:
		results = []*agent.CommandResult{r}
	case agent.AggregatedResult:
		for _, node := range r.Nodes() {
			results = append(results, r[node])
		}
	}

	if len(results) > 0 {
		table := f.createTable(w)
		f.setHeader(table, colors, "NODE", "STATUS", "EXIT", "DURATION")
		for _, r := range results {
			table.Append([]string{
				colors.Node(r.Node),
				colors.StatusColor(r.Failed())(status(r)),
				strconv.Itoa(r.ExitStatus),
				colors.Duration(r.Duration.Round(time.Millisecond).String()),
			})
		}
		table.Render()

		for _, r := range results {
			f.printStreams(w, r, colors)
		}
		f.printSummary(w, results, colors)
	}

	if err != nil {
		fmt.Fprintln(w, colors.Error("Error: %v", err))
	}
	return nil
}

func status(r *agent.CommandResult) string {
	switch {
	case r.Err != nil:
		return "Unreachable"
	case r.ExitStatus != 0:
		return "Failed"
	}
	return "Success"
}

func (f *TableFormatter) printStreams(w io.Writer, r *agent.CommandResult, colors *ColorScheme) {
	stdout, stderr := r.Stdout, r.Stderr
	if !f.options.Wide {
		stdout, stderr = tail(stdout), tail(stderr)
	}
	if len(stdout) == 0 && len(stderr) == 0 && r.Err == nil {
		return
	}

	fmt.Fprintf(w, "\n==> %s <==\n", colors.Node(r.Node))
	for _, line := range stdout {
		fmt.Fprintln(w, line)
	}
	for _, line := range stderr {
		fmt.Fprintln(w, colors.Warning(line))
	}
	if r.Err != nil {
		fmt.Fprintln(w, colors.Error(r.Err.Error()))
	}
}

func tail(lines []string) []string {
	if len(lines) <= 1 {
		return lines
	}
	return lines[len(lines)-1:]
}

func (f *TableFormatter) printSummary(w io.Writer, results []*agent.CommandResult, colors *ColorScheme) {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}

	failedText := fmt.Sprintf("%d failed", failed)
	if failed > 0 {
		failedText = colors.Error(failedText)
	}
	fmt.Fprintf(w, "\nSummary: %s, %s\n", colors.Success("%d successful", len(results)-failed), failedText)
}

func (f *TableFormatter) formatCluster(w io.Writer, info *model.ClusterInfo, colors *ColorScheme) error {
	table := f.createTable(w)
	f.setHeader(table, colors, "NODE", "HOSTNAME", "ROLE", "REACHABLE", "SWARM")
	for _, n := range info.Nodes {
		role := "worker"
		if n.Master {
			role = "master"
		}
		reachable := colors.Success("yes")
		if !n.Reachable {
			reachable = colors.Error("no")
		}
		swarmState := n.SwarmState
		if swarmState == "" {
			swarmState = "-"
		}
		table.Append([]string{colors.Node(n.Name), n.Hostname, role, reachable, swarmState})
	}
	table.Render()
	return nil
}

func (f *TableFormatter) formatHistory(w io.Writer, entries []history.Entry, colors *ColorScheme) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	table := f.createTable(w)
	f.setHeader(table, colors, "ID", "AT", "NODE", "EXIT", "DURATION", "COMMAND")
	for _, e := range entries {
		cmd := strings.ReplaceAll(e.Command, "\n", "; ")
		if !f.options.Wide && len(cmd) > 50 {
			cmd = cmd[:47] + "..."
		}
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			e.At.Local().Format(time.DateTime),
			colors.Node(e.Node),
			colors.StatusColor(e.ExitStatus != 0)("%d", e.ExitStatus),
			colors.Duration(e.Duration.Round(time.Millisecond).String()),
			cmd,
		})
	}
	table.Render()
	return nil
}

func (f *TableFormatter) setHeader(table *tablewriter.Table, colors *ColorScheme, headers ...string) {
	if f.options.NoHeaders {
		return
	}
	if !colors.Disabled {
		for i, h := range headers {
			headers[i] = colors.Header(h)
		}
	}
	table.SetHeader(headers)
}

// createTable returns a borderless, tab-padded table.
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}
