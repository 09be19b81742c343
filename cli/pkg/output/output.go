// Package output renders CLI results: colored status lines, tables and
// machine-readable JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/parkline/parkpos/internal/notify"
)

// Formats accepted by Print.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

// SetOutput redirects output and returns a func restoring the previous
// writers.
func SetOutput(out, errOut io.Writer) func() {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		stdout, stderr = prevOut, prevErr
	}
}

func Success(format string, a ...any) {
	successColor.Fprintf(stdout, "✓ "+format+"\n", a...)
}

func Error(format string, a ...any) {
	errorColor.Fprintf(stderr, "✗ "+format+"\n", a...)
}

func Info(format string, a ...any) {
	infoColor.Fprintf(stdout, format+"\n", a...)
}

func Warn(format string, a ...any) {
	warnColor.Fprintf(stderr, "⚠ "+format+"\n", a...)
}

// Notify prints a notification with the style of its severity.
func Notify(n notify.Notification) {
	text := n.Message
	if n.Title != "" {
		text = n.Title + ": " + n.Message
	}
	switch n.Severity {
	case notify.SeveritySuccess:
		Success("%s", text)
	case notify.SeverityWarning:
		Warn("%s", text)
	case notify.SeverityError:
		Error("%s", text)
	default:
		Info("%s", text)
	}
}

func JSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func YAML(v any) error {
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// Print writes v in format. For the table format, table builds the
// rendering; a nil table falls back to JSON.
func Print(format string, v any, table func() *Table) error {
	switch format {
	case FormatJSON:
		return JSON(v)
	case FormatYAML:
		return YAML(v)
	case FormatTable, "":
		if table == nil {
			return JSON(v)
		}
		table().Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, header := range t.headers {
		headerColor.Fprintf(stdout, "%-*s  ", widths[i], header)
	}
	fmt.Fprintln(stdout)

	for i := range t.headers {
		fmt.Fprint(stdout, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(stdout)

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			fmt.Fprintf(stdout, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(stdout)
	}
}

// KeyValues renders pairs as a two-column table.
func KeyValues(pairs ...[2]string) *Table {
	t := NewTable("FIELD", "VALUE")
	for _, p := range pairs {
		t.AddRow(p[0], p[1])
	}
	return t
}
