// Package ingest turns a street-tree inventory into validated tree records.
// Sources are read once; every row either becomes a Tree or is counted
// under a SkipReason in the LoadReport.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Inventory column names (Berlin Baumbestand export).
const (
	ColID       = "id"
	ColDistrict = "bezirk"
	ColLat      = "latitude"
	ColLon      = "longitude"
	ColSpecies  = "art_dtsch"
	ColAge      = "standalter"
	ColCrown    = "kronedurch"
)

// RequiredColumns must be present in every source.
var RequiredColumns = []string{ColLat, ColLon, ColSpecies, ColAge, ColCrown}

var (
	// ErrSourceUnreadable means the inventory could not be opened or parsed.
	ErrSourceUnreadable = errors.New("tree source unreadable")
	// ErrMissingColumn means a required column is absent.
	ErrMissingColumn = errors.New("tree source missing column")
)

// Row is one raw inventory row keyed by column name. Missing cells are "".
type Row struct {
	Index  int64 // 0-based position in the source
	Fields map[string]string
}

// Source yields the raw rows of an inventory.
type Source interface {
	Name() string
	Rows() (columns []string, rows []Row, err error)
}

// CSVSource reads a comma-separated export with a header row.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return s.Path }

func (s CSVSource) Rows() ([]string, []Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read header: %v", ErrSourceUnreadable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []Row
	for idx := int64(0); ; idx++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrSourceUnreadable, idx, err)
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				fields[col] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, Row{Index: idx, Fields: fields})
	}
	return header, rows, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads an inventory table from a SQLite database.
type SQLiteSource struct {
	Path  string
	Table string
}

func (s SQLiteSource) Name() string { return s.Path + "#" + s.Table }

func (s SQLiteSource) Rows() ([]string, []Row, error) {
	if !identifier.MatchString(s.Table) {
		return nil, nil, fmt.Errorf("%w: bad table name %q", ErrSourceUnreadable, s.Table)
	}
	if _, err := os.Stat(s.Path); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	db, err := sqlx.Open("sqlite", s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open: %v", ErrSourceUnreadable, err)
	}
	defer db.Close()

	q, err := db.Queryx("SELECT * FROM " + s.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: query: %v", ErrSourceUnreadable, err)
	}
	defer q.Close()

	columns, err := q.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: columns: %v", ErrSourceUnreadable, err)
	}

	var rows []Row
	for idx := int64(0); q.Next(); idx++ {
		raw := make(map[string]any, len(columns))
		if err := q.MapScan(raw); err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrSourceUnreadable, idx, err)
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			fields[k] = cellString(v)
		}
		rows = append(rows, Row{Index: idx, Fields: fields})
	}
	if err := q.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	return columns, rows, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.TrimSpace(string(x))
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
