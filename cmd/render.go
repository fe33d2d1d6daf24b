package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/storylint/internal/lint"
)

const (
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatSummary = "summary"
)

type renderer func(w io.Writer, report *lint.Report) error

func rendererFor(format string, noColor bool) (renderer, error) {
	switch format {
	case formatJSON:
		return renderJSON, nil
	case formatYAML:
		return renderYAML, nil
	case formatSummary:
		return func(w io.Writer, report *lint.Report) error {
			return renderSummary(w, report, noColor)
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, yaml or summary)", format)
	}
}

func renderJSON(w io.Writer, report *lint.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func renderYAML(w io.Writer, report *lint.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}

// renderSummary prints one line per check, sub-verdicts indented beneath,
// followed by the comma-joined identifiers that did not pass.
func renderSummary(w io.Writer, report *lint.Report, noColor bool) error {
	palette := map[lint.Status]*color.Color{
		lint.StatusPass: color.New(color.FgGreen),
		lint.StatusInfo: color.New(color.FgCyan),
		lint.StatusWarn: color.New(color.FgYellow),
		lint.StatusFail: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range palette {
			c.DisableColor()
		}
	}
	label := func(s lint.Status) string {
		c, ok := palette[s]
		if !ok {
			return fmt.Sprintf("%-4s", s)
		}
		return c.Sprintf("%-4s", s)
	}

	for _, id := range report.IDs() {
		out, _ := report.Get(id)
		v := out.Verdict()
		line := fmt.Sprintf("%s  %s", label(v.Status), id)
		if !out.IsList() && !v.Message.IsZero() {
			line += "  " + v.Message.String()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		if !out.IsList() {
			continue
		}
		for _, sub := range out.Verdicts() {
			if _, err := fmt.Fprintf(w, "      %s  %s\n", label(sub.Status), sub.Message.String()); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
		}
	}
	failed := report.Summary()
	if failed == "" {
		failed = "none"
	}
	if _, err := fmt.Fprintf(w, "not passed: %s\n", failed); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
