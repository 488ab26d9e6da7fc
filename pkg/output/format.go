// Package output renders calculation results for the terminal.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/format"
	"github.com/iwvelando/venture-calc/pkg/validation"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Render writes result in the named format.
func Render(w io.Writer, outputFormat string, result calc.Result) error {
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}
	switch outputFormat {
	case constants.OutputFormatCSV:
		return CsvFormat(w, result)
	case constants.OutputFormatJSON:
		return JSONFormat(w, result)
	default:
		return PrettyFormat(w, result)
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, result calc.Result) error {
	p := message.NewPrinter(language.English)

	if !result.OK() {
		fmt.Fprintf(w, "--- %s failed ---\n", result.Kind)
		fmt.Fprintf(w, "error: %s\n", result.Error)
		if len(result.Missing) > 0 {
			fmt.Fprintf(w, "missing: %s\n", strings.Join(result.Missing, ", "))
		}
		return nil
	}

	summary, tables, err := flatten(result.Outputs)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "--- Results for %s ---\n", result.Kind)
	if headline := Headline(result); headline != "" {
		fmt.Fprintln(w, headline)
	}
	width := 0
	for _, f := range summary {
		if len(f.name) > width {
			width = len(f.name)
		}
	}
	for _, f := range summary {
		fmt.Fprintf(w, "%-*s | %s\n", width, f.name, prettyValue(p, f.value))
	}

	for _, t := range tables {
		fmt.Fprintf(w, "\n%s\n", t.name)
		fmt.Fprintln(w, strings.Join(t.columns, " | "))
		underline := make([]string, len(t.columns))
		for i, c := range t.columns {
			underline[i] = strings.Repeat("_", len(c))
		}
		fmt.Fprintln(w, strings.Join(underline, " | "))
		for _, row := range t.rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = prettyValue(p, v)
			}
			fmt.Fprintln(w, strings.Join(cells, " | "))
		}
	}
	return nil
}

// CsvFormat outputs in comma-separated value format: a field/value block for
// scalar outputs, then one block per series separated by blank lines.
func CsvFormat(w io.Writer, result calc.Result) error {
	cw := csv.NewWriter(w)

	if !result.OK() {
		_ = cw.Write([]string{"kind", "error", "missing"})
		_ = cw.Write([]string{string(result.Kind), result.Error, strings.Join(result.Missing, ",")})
		cw.Flush()
		return cw.Error()
	}

	summary, tables, err := flatten(result.Outputs)
	if err != nil {
		return err
	}

	_ = cw.Write([]string{"field", "value"})
	for _, f := range summary {
		_ = cw.Write([]string{f.name, plainValue(f.value)})
	}
	for _, t := range tables {
		cw.Flush()
		fmt.Fprintln(w)
		header := make([]string, len(t.columns))
		for i, c := range t.columns {
			header[i] = t.name + "." + c
		}
		_ = cw.Write(header)
		for _, row := range t.rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = plainValue(v)
			}
			_ = cw.Write(cells)
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSONFormat outputs the result as indented JSON.
func JSONFormat(w io.Writer, result calc.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

type field struct {
	name  string
	value interface{}
}

type table struct {
	name    string
	columns []string
	rows    [][]interface{}
}

// flatten splits outputs into scalar fields and tabular series, keeping the
// order in which the result declares them. Nested objects flatten to dotted
// names; lists of scalars become single-column tables.
func flatten(outputs interface{}) ([]field, []table, error) {
	encoded, err := json.Marshal(outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode outputs: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()

	root, err := readValue(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode outputs: %w", err)
	}

	var summary []field
	var tables []table
	obj, ok := root.(orderedObject)
	if !ok {
		return []field{{name: "value", value: root}}, nil, nil
	}
	collect("", obj, &summary, &tables)
	return summary, tables, nil
}

func collect(prefix string, obj orderedObject, summary *[]field, tables *[]table) {
	for _, entry := range obj {
		name := entry.name
		if prefix != "" {
			name = prefix + "." + name
		}
		switch v := entry.value.(type) {
		case orderedObject:
			collect(name, v, summary, tables)
		case []interface{}:
			if len(v) > 0 {
				*tables = append(*tables, toTable(name, v))
			}
		default:
			*summary = append(*summary, field{name: name, value: v})
		}
	}
}

func toTable(name string, items []interface{}) table {
	t := table{name: name}
	index := map[string]int{}
	for _, item := range items {
		obj, ok := item.(orderedObject)
		if !ok {
			if len(t.columns) == 0 {
				t.columns = []string{"#", "value"}
			}
			t.rows = append(t.rows, []interface{}{json.Number(fmt.Sprint(len(t.rows) + 1)), item})
			continue
		}
		for _, entry := range obj {
			if _, seen := index[entry.name]; !seen {
				index[entry.name] = len(t.columns)
				t.columns = append(t.columns, entry.name)
			}
		}
	}
	for _, item := range items {
		obj, ok := item.(orderedObject)
		if !ok {
			continue
		}
		row := make([]interface{}, len(t.columns))
		for _, entry := range obj {
			row[index[entry.name]] = entry.value
		}
		t.rows = append(t.rows, row)
	}
	return t
}

type orderedObject []field

func readValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var obj orderedObject
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				value, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, field{name: key, value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			list := []interface{}{}
			for dec.More() {
				value, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

func prettyValue(p *message.Printer, v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return p.Sprintf("%d", i)
		}
		if f, err := val.Float64(); err == nil {
			return format.NumericCurrency(f)
		}
		return val.String()
	case orderedObject, []interface{}:
		return plainValue(v)
	default:
		return fmt.Sprint(val)
	}
}

func plainValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return val.String()
		}
		if f, err := val.Float64(); err == nil {
			return fmt.Sprintf("%.2f", f)
		}
		return val.String()
	case orderedObject:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = f.name + "=" + plainValue(f.value)
		}
		return strings.Join(parts, ";")
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = plainValue(item)
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(val)
	}
}
