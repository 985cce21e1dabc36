package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatText is human-readable text output
	FormatText OutputFormat = "text"
	// FormatJSON is structured JSON output
	FormatJSON OutputFormat = "json"
)

// Formatter renders command output in the selected format.
type Formatter interface {
	// PrintSuccess prints a success message
	PrintSuccess(message string) error
	// PrintTable prints a table with headers and rows
	PrintTable(headers []string, rows [][]string) error
	// PrintJSON prints arbitrary data as JSON
	PrintJSON(data any) error
}

// NewFormatter creates a Formatter for the given format. A nil writer
// defaults to stdout.
func NewFormatter(format OutputFormat, w io.Writer) Formatter {
	if w == nil {
		w = os.Stdout
	}
	if format == FormatJSON {
		return &JSONFormatter{writer: w}
	}
	return &TextFormatter{writer: w}
}

// TextFormatter renders human-readable text.
type TextFormatter struct {
	writer io.Writer
}

// PrintSuccess prints a success message with a checkmark prefix.
func (f *TextFormatter) PrintSuccess(message string) error {
	_, err := fmt.Fprintf(f.writer, "✓ %s\n", message)
	return err
}

// PrintTable prints an aligned table via text/tabwriter.
func (f *TextFormatter) PrintTable(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(upper, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// PrintJSON prints data as indented JSON.
func (f *TextFormatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// JSONFormatter renders everything as JSON.
type JSONFormatter struct {
	writer io.Writer
}

// PrintSuccess prints a success message as a JSON object.
func (f *JSONFormatter) PrintSuccess(message string) error {
	return f.PrintJSON(map[string]any{
		"status":  "success",
		"message": message,
	})
}

// PrintTable prints rows keyed by header name.
func (f *JSONFormatter) PrintTable(headers []string, rows [][]string) error {
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		data = append(data, m)
	}
	return f.PrintJSON(data)
}

// PrintJSON prints data as indented JSON.
func (f *JSONFormatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
