package dataset

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var sqliteIdentifier = regexp.MustCompile(`^[\w-]+$`)

func openSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	return db, nil
}

// ListSQLiteTables returns the names of all user tables in a sqlite database.
func ListSQLiteTables(path string) ([]string, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	var tables []string
	if err := db.Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error; err != nil {
		return nil, fmt.Errorf("listing tables in %s: %w", path, err)
	}
	return tables, nil
}

// ReadSQLiteTable loads a full table from a sqlite database file.
func ReadSQLiteTable(path, table string) (*Table, error) {
	if !sqliteIdentifier.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrMalformedInput, table)
	}
	return ReadSQLiteQuery(path, fmt.Sprintf("SELECT * FROM %q", table))
}

// ReadSQLiteQuery runs a query against a sqlite database file and loads the
// result set as a table.
func ReadSQLiteQuery(path, query string) (*Table, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	rows, err := db.Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite query failed: %v", ErrMalformedInput, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var records [][]string
	for rows.Next() {
		cells := make([]any, len(header))
		ptrs := make([]any, len(header))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning sqlite row: %w", err)
		}

		record := make([]string, len(header))
		for i, cell := range cells {
			record[i] = sqliteCell(cell)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sqlite rows: %w", err)
	}

	return fromRows(header, records)
}

func sqliteCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case sql.RawBytes:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
