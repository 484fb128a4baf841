// Package presentation renders the hierarchy and resolver answers for the
// command line: JSON, tables, an indented tree and diffs between trees.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ParseFormat validates an output format name. Empty means table.
func ParseFormat(s string) (string, error) {
	switch s {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table or json)", s)
	}
}

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer, format string) *Formatter {
	if format == "" {
		format = FormatTable
	}
	return &Formatter{writer: writer, format: format}
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatCandidates writes a confidence table.
func (f *Formatter) FormatCandidates(rows []CandidateDTO) error {
	if f.format == FormatJSON {
		return f.JSON(rows)
	}
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		mark := ""
		if r.Winner {
			mark = "*"
		}
		body = append(body, []string{strconv.Itoa(r.Position), r.Plugin, strconv.FormatFloat(r.Confidence, 'f', 2, 64), mark})
	}
	_, err := fmt.Fprintln(f.writer, renderTable(
		[]string{"#", "Plugin", "Confidence", "Winner"}, body,
		[]text.Align{text.AlignRight, text.AlignLeft, text.AlignRight, text.AlignCenter}))
	return err
}

// FormatPlugins writes the plugin list in tie-break order.
func (f *Formatter) FormatPlugins(names []string) error {
	if f.format == FormatJSON {
		return f.JSON(names)
	}
	body := make([][]string, 0, len(names))
	for i, n := range names {
		body = append(body, []string{strconv.Itoa(i + 1), n})
	}
	_, err := fmt.Fprintln(f.writer, renderTable([]string{"#", "Plugin"}, body, []text.Align{text.AlignRight}))
	return err
}

// FormatReport writes a pass report.
func (f *Formatter) FormatReport(r ReportDTO) error {
	if f.format == FormatJSON {
		return f.JSON(r)
	}
	rows := [][]string{
		{"resolved", strconv.Itoa(r.Resolved)},
		{"merged", strconv.Itoa(r.Merged)},
		{"added", strconv.Itoa(r.Added)},
		{"shadows healed", strconv.Itoa(r.ShadowsHealed)},
		{"removed", strconv.Itoa(r.Removed)},
		{"owners changed", strconv.Itoa(r.OwnersChanged)},
	}
	_, err := fmt.Fprintln(f.writer, renderTable([]string{"Change", "Count"}, rows,
		[]text.Align{text.AlignLeft, text.AlignRight}))
	return err
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
