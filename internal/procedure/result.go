package procedure

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyResult is returned when a procedure produced no rows where at least
// one was expected.
var ErrEmptyResult = errors.New("procedure returned no result")

// DecodeFirst decodes the first row of the first result set into out.
//
// Procedures return their payload in one of two shapes: a single "result"
// column holding a JSON-encoded string, or a plain row whose columns are the
// payload fields. Both are normalized here so callers never branch on the
// encoding.
func DecodeFirst(sets [][]Row, out any) error {
	row, err := firstRow(sets)
	if err != nil {
		return err
	}
	if v, ok := row["result"]; ok && len(row) == 1 {
		return decodeValue(v, out)
	}
	return decodeValue(row, out)
}

func firstRow(sets [][]Row) (Row, error) {
	if len(sets) == 0 || len(sets[0]) == 0 {
		return nil, ErrEmptyResult
	}
	return sets[0][0], nil
}

func decodeValue(v any, out any) error {
	switch t := v.(type) {
	case string:
		if err := json.Unmarshal([]byte(t), out); err != nil {
			return fmt.Errorf("decode procedure result: %w", err)
		}
		return nil
	case []byte:
		if err := json.Unmarshal(t, out); err != nil {
			return fmt.Errorf("decode procedure result: %w", err)
		}
		return nil
	default:
		// Already-decoded value (e.g. a Row); round-trip through JSON to fill out.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("decode procedure result: %w", err)
		}
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("decode procedure result: %w", err)
		}
		return nil
	}
}
