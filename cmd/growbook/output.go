package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
	formatTable outputFormat = "table"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatJSON, formatYAML, formatTable:
		return f, nil
	case "":
		return formatTable, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// tableWriter aligns tab-separated rows.
type tableWriter struct {
	tw *tabwriter.Writer
}

func (t *tableWriter) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func render(w io.Writer, f outputFormat, v any, table func(t *tableWriter)) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		t := &tableWriter{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
		table(t)
		return t.tw.Flush()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
