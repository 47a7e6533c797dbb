package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// ReadJSON parses a JSON array of flat objects into a table. Columns are the
// first record's keys in sorted order, with keys that only appear in later
// records appended alphabetically. Null and absent values are missing.
func ReadJSON(r io.Reader) (*Table, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of objects: %v", ErrMalformedInput, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	header := jsonHeader(records)

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for j, key := range header {
			v, ok := rec[key]
			if !ok || v == nil {
				row[j] = ""
				continue
			}
			cell, err := jsonCell(v)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d, key %q: %v", ErrMalformedInput, i, key, err)
			}
			row[j] = cell
		}
		rows[i] = row
	}

	return fromRows(header, rows)
}

// ReadJSONFile is a convenience wrapper around ReadJSON for on-disk files.
func ReadJSONFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening json file %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("reading json file %s: %w", path, err)
	}
	return t, nil
}

func jsonHeader(records []map[string]any) []string {
	seen := make(map[string]struct{})
	var header []string

	// Key order within a decoded map is not stable, so the first record's keys
	// are sorted too.
	var first []string
	for key := range records[0] {
		first = append(first, key)
	}
	sort.Strings(first)
	for _, key := range first {
		seen[key] = struct{}{}
		header = append(header, key)
	}

	var extra []string
	for _, rec := range records[1:] {
		for key := range rec {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				extra = append(extra, key)
			}
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func jsonCell(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("nested value of type %T is not supported", v)
	}
}
