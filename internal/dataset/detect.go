package dataset

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Load reads a dataset from disk, picking the loader from the file extension.
// For sqlite databases the first user table is loaded; use ReadSQLiteTable to
// pick a specific one.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVFile(path)
	case ".json":
		return ReadJSONFile(path)
	case ".db", ".sqlite", ".sqlite3":
		tables, err := ListSQLiteTables(path)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, fmt.Errorf("%w: sqlite database %s has no tables", ErrEmptyInput, path)
		}
		if len(tables) > 1 {
			slog.Warn("sqlite database has multiple tables, loading the first", "path", path, "table", tables[0])
		}
		return ReadSQLiteTable(path, tables[0])
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrMalformedInput, filepath.Ext(path))
	}
}
