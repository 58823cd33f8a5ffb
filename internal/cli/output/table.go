package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats data as an aligned table.
//
// Objects render as FIELD/VALUE rows with nested keys joined by dots.
// Slices of objects render one row per element.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	switch t := data.(type) {
	case *Table:
		return t.render(w, f.NoHeaders)
	case Table:
		return t.render(w, f.NoHeaders)
	}

	v, err := generic(data)
	if err != nil {
		return err
	}

	var table *Table
	switch t := v.(type) {
	case map[string]any:
		table = objectTable(t)
	case []any:
		table = listTable(t)
	default:
		table = &Table{Headers: []string{"VALUE"}, Rows: [][]string{{cell(t)}}}
	}
	return table.render(w, f.NoHeaders)
}

func objectTable(obj map[string]any) *Table {
	flat := make(map[string]string)
	flatten("", obj, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, k := range keys {
		t.AddRow(k, flat[k])
	}
	return t
}

func listTable(items []any) *Table {
	t := &Table{}
	if len(items) == 0 {
		return t
	}

	rows := make([]map[string]string, len(items))
	cols := make(map[string]struct{})
	for i, item := range items {
		rows[i] = make(map[string]string)
		if obj, ok := item.(map[string]any); ok {
			flatten("", obj, rows[i])
		} else {
			rows[i]["value"] = cell(item)
		}
		for k := range rows[i] {
			cols[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(cols))
	for k := range cols {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t.Headers = append(t.Headers, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}
	for _, r := range rows {
		cells := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := r[k]; ok {
				cells[i] = v
			} else {
				cells[i] = "-"
			}
		}
		t.AddRow(cells...)
	}
	return t
}

func flatten(prefix string, obj map[string]any, out map[string]string) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(key, nested, out)
			continue
		}
		out[key] = cell(v)
	}
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		if t == "" {
			return "-"
		}
		return t
	case []any:
		if len(t) == 0 {
			return "-"
		}
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = cell(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "-"
	default:
		return fmt.Sprint(t)
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table with headers.
func (t *Table) Render(w io.Writer) error {
	return t.render(w, false)
}

func (t *Table) render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
