package datarecording

import (
	"context"
	"database/sql"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
)

// QueryParams narrows a query.
type QueryParams struct {
	// Where holds the condition without the WHERE keyword, for example
	// "Component = ?".
	Where string

	// Args fills the placeholders in Where.
	Args []any

	// Limit caps the number of rows. 0 means no limit.
	Limit int

	// OrderBy holds the ordering without the ORDER BY keywords.
	OrderBy string
}

// DataReader reads tables written by a DataRecorder back into structs.
type DataReader interface {
	// MapTable tells the reader which struct a table's rows decode into.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped table names.
	ListTables() []string

	// Query returns pointers to decoded rows.
	Query(ctx context.Context, tableName string, params QueryParams) (
		[]any, error)

	// Close closes the reader.
	Close() error
}

// SQLiteReader reads an SQLite database.
type SQLiteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens dbFilename for reading.
func NewReader(dbFilename string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbFilename)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a reader on an open database.
func NewReaderWithDB(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

// MapTable maps a table to the type of sampleEntry.
func (r *SQLiteReader) MapTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

// ListTables returns the mapped table names in alphabetical order.
func (r *SQLiteReader) ListTables() []string {
	names := make([]string, 0, len(r.typeMap))
	for name := range r.typeMap {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Query reads rows of a mapped table.
func (r *SQLiteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, error) {
	t, ok := r.typeMap[tableName]
	if !ok {
		return nil, errors.Errorf("table %s is not mapped", tableName)
	}

	columns := structs.Names(reflect.New(t).Elem().Interface())
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + tableName

	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	args := params.Args
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(append([]any{}, args...), params.Limit)
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", tableName)
	}
	defer rows.Close()

	var results []any

	for rows.Next() {
		entry := reflect.New(t)
		targets := make([]any, t.NumField())

		for i := range targets {
			targets[i] = entry.Elem().Field(i).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", tableName)
		}

		results = append(results, entry.Interface())
	}

	return results, errors.Wrap(rows.Err(), "iterating rows")
}

// Close closes the database.
func (r *SQLiteReader) Close() error {
	return r.DB.Close()
}
