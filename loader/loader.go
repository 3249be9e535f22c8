package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	goavro "github.com/linkedin/goavro/v2"
	parquet "github.com/parquet-go/parquet-go"

	"github.com/trilochan-behera-dev/database-query/table"
)

// Extensions lists the file formats Load understands.
var Extensions = []string{".csv", ".json", ".jsonl", ".avro", ".parquet"}

// TableName derives a table name from a file name: "data/orders.csv" is
// table "orders".
func TableName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a file and returns a Table named after it. Cell types are
// inferred.
func Load(filename string) (*table.Table, error) {
	return load(filename, nil)
}

// LoadWithSchema reads a file and coerces its rows to schema. CSV cells are
// kept as text until coerced, so "05021" stays a string where the schema
// says so.
func LoadWithSchema(filename string, schema *table.Schema) (*table.Table, error) {
	return load(filename, schema)
}

func load(filename string, schema *table.Schema) (*table.Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := TableName(filename)

	var t *table.Table
	var err error
	switch ext {
	case ".csv":
		t, err = loadCSV(filename, name, schema != nil)
	case ".json":
		t, err = loadJSON(filename, name)
	case ".jsonl":
		t, err = loadJSONL(filename, name)
	case ".avro":
		t, err = loadAvro(filename, name)
	case ".parquet":
		t, err = loadParquet(filename, name)
	default:
		return nil, fmt.Errorf("unsupported file format %q (supported: %s)", ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, err
	}
	if schema != nil {
		if err := schema.Apply(t); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	return t, nil
}

func loadCSV(filename, name string, raw bool) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header from %s: %w", filename, err)
	}

	// Trim whitespace and a UTF-8 BOM from column names
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := table.NewTable(name, columns)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}

		vals := make([]table.Value, len(columns))
		for i := range columns {
			switch {
			case i >= len(record):
				vals[i] = table.Null()
			case raw:
				vals[i] = table.StrVal(record[i])
			default:
				vals[i] = parseValue(strings.TrimSpace(record[i]))
			}
		}
		t.AddRow(vals)
	}

	return t, nil
}

// parseValue infers the type of a CSV cell value.
func parseValue(s string) table.Value {
	if s == "" || strings.EqualFold(s, "null") {
		return table.Null()
	}

	// Try integer
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntVal(v)
	}

	// Try float
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return table.FloatVal(v)
	}

	// Try boolean
	lower := strings.ToLower(s)
	if lower == "true" {
		return table.BoolVal(true)
	}
	if lower == "false" {
		return table.BoolVal(false)
	}

	return table.StrVal(s)
}

func loadJSON(filename, name string) (*table.Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("cannot parse JSON from %s: %w (expected array of objects)", filename, err)
	}

	return buildTableFromRecords(name, records, nil), nil
}

func loadJSONL(filename, name string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []map[string]any
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}

	return buildTableFromRecords(name, records, nil), nil
}

// buildTableFromRecords turns decoded records into a table. Columns follow
// the given order, then first appearance; JSON objects carry no order, so
// new keys of a record are taken sorted.
func buildTableFromRecords(name string, records []map[string]any, columns []string) *table.Table {
	colSet := make(map[string]bool)
	for _, c := range columns {
		colSet[c] = true
	}
	for _, rec := range records {
		var extra []string
		for k := range rec {
			if !colSet[k] {
				colSet[k] = true
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		columns = append(columns, extra...)
	}

	t := table.NewTable(name, columns)
	for _, rec := range records {
		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			vals[i] = jsonValue(rec[col])
		}
		t.AddRow(vals)
	}
	return t
}

func jsonValue(v any) table.Value {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return table.IntVal(n)
		}
		f, _ := val.Float64()
		return table.FloatVal(f)
	case []any:
		arr := make([]table.Value, len(val))
		for i, e := range val {
			arr[i] = jsonValue(e)
		}
		return table.ArrayVal(arr)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := table.NewDoc()
		for _, k := range keys {
			d.Set(k, jsonValue(val[k]))
		}
		return table.DocVal(d)
	default:
		return table.FromInterface(val)
	}
}

func loadAvro(filename, name string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	ocfr, err := goavro.NewOCFReader(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read Avro OCF from %s: %w", filename, err)
	}

	// Extract column names from the schema
	var schemaDef struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocfr.Codec().Schema()), &schemaDef); err != nil {
		return nil, fmt.Errorf("cannot parse Avro schema: %w", err)
	}

	columns := make([]string, len(schemaDef.Fields))
	for i, field := range schemaDef.Fields {
		columns[i] = field.Name
	}

	t := table.NewTable(name, columns)

	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, fmt.Errorf("error reading Avro record: %w", err)
		}

		rec, ok := datum.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected Avro record type %T", datum)
		}

		vals := make([]table.Value, len(columns))
		for i, col := range columns {
			vals[i] = avroValue(rec[col])
		}
		t.AddRow(vals)
	}

	if err := ocfr.Err(); err != nil {
		return nil, fmt.Errorf("error reading Avro file: %w", err)
	}

	return t, nil
}

func avroValue(v any) table.Value {
	switch val := v.(type) {
	case map[string]any:
		// Avro unions decode as {"type": value} - extract the value
		if len(val) == 1 {
			for _, inner := range val {
				return avroValue(inner)
			}
		}
		return table.FromInterface(val)
	case []any:
		arr := make([]table.Value, len(val))
		for i, e := range val {
			arr[i] = avroValue(e)
		}
		return table.ArrayVal(arr)
	default:
		return table.FromInterface(val)
	}
}

func loadParquet(filename, name string) (*table.Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", filename, err)
	}
	pqFile, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot open parquet file %s: %w", filename, err)
	}

	var columns []string
	for _, field := range pqFile.Schema().Fields() {
		columns = append(columns, field.Name())
	}

	reader := parquet.NewReader(pqFile)
	defer reader.Close()

	var records []map[string]any
	for {
		row := make(map[string]any)
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading parquet row from %s: %w", filename, err)
		}
		records = append(records, row)
	}

	return buildTableFromRecords(name, records, columns), nil
}
