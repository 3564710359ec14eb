// Package procedure is the boundary to the MySQL stored procedures that hold
// the application's business logic. Caller executes a procedure by name with
// positional parameters; Client exposes one typed method per procedure so the
// rest of the code never deals with procedure names or raw result rows.
package procedure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnavailable is returned when the underlying store cannot be reached or
// fails to execute the procedure.
var ErrUnavailable = errors.New("procedure store unavailable")

// Row is a single result row keyed by column name.
type Row map[string]any

// Caller executes a named stored procedure with positional parameters and
// returns all of its result sets.
type Caller interface {
	Call(ctx context.Context, name string, params ...any) ([][]Row, error)
}

var procNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCaller executes stored procedures over a database/sql connection pool.
type SQLCaller struct {
	db *sql.DB
}

// NewSQLCaller returns a Caller backed by db.
func NewSQLCaller(db *sql.DB) *SQLCaller {
	return &SQLCaller{db: db}
}

// Call runs CALL name(?, ...) and collects every result set. The name must be
// a plain identifier; parameters are always bound, never interpolated.
func (c *SQLCaller) Call(ctx context.Context, name string, params ...any) ([][]Row, error) {
	if !procNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid procedure name %q", name)
	}
	placeholders := make([]string, len(params))
	for i := range params {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("CALL %s(%s)", name, strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w: %w", name, ErrUnavailable, err)
	}
	defer rows.Close()

	var sets [][]Row
	for {
		set, err := scanResultSet(rows)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", name, err)
		}
		sets = append(sets, set)
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call %s: %w: %w", name, ErrUnavailable, err)
	}
	return sets, nil
}

func scanResultSet(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	set := make([]Row, 0, 4)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			// The MySQL driver hands text columns back as []byte.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		set = append(set, row)
	}
	return set, rows.Err()
}
