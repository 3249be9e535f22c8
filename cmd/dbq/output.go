package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/trilochan-behera-dev/database-query/table"
)

// columns returns the field names of docs in first-seen order.
func columns(docs []*table.Doc) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, d := range docs {
		for _, k := range d.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func writeDocs(w io.Writer, format string, docs []*table.Doc) error {
	switch format {
	case "json":
		return writeJSON(w, docs)
	case "csv":
		return writeCSV(w, docs)
	default:
		writeTable(w, docs)
		return nil
	}
}

// writeJSON writes one JSON object per line, keeping field order.
func writeJSON(w io.Writer, docs []*table.Doc) error {
	enc := json.NewEncoder(w)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, docs []*table.Doc) error {
	cw := csv.NewWriter(w)
	cols := columns(docs)
	if len(cols) > 0 {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	for _, d := range docs {
		record := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := d.Get(c); ok && !v.IsNull() {
				record[i] = v.AsString()
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, docs []*table.Doc) {
	cols := columns(docs)
	if len(cols) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	tw := newTableWriter(w, cols)
	for _, d := range docs {
		row := make([]string, len(cols))
		for i, c := range cols {
			v, ok := d.Get(c)
			if !ok {
				v = table.Null()
			}
			row[i] = v.AsString()
		}
		tw.Append(row)
	}
	tw.Render()
}

func newTableWriter(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	return tw
}
