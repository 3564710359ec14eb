package procedure

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLCaller_SingleResultSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"result"}).
		AddRow([]byte(`{"success": true, "user_id": 42}`))
	mock.ExpectQuery("CALL fastapi_login").
		WithArgs("alice", "Secret123", "sess-1", "127.0.0.1").
		WillReturnRows(rows)

	caller := NewSQLCaller(db)
	sets, err := caller.Call(context.Background(), "fastapi_login", "alice", "Secret123", "sess-1", "127.0.0.1")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(sets) != 1 || len(sets[0]) != 1 {
		t.Fatalf("got %d sets, want 1 set with 1 row", len(sets))
	}
	// []byte columns come back as string.
	if got, ok := sets[0][0]["result"].(string); !ok || got != `{"success": true, "user_id": 42}` {
		t.Errorf("result column = %v (%T)", sets[0][0]["result"], sets[0][0]["result"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestSQLCaller_MultipleResultSets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	contracts := sqlmock.NewRows([]string{"id", "loai_bao_hiem"}).
		AddRow(int64(1), "y_te").
		AddRow(int64(2), "nhan_tho")
	totals := sqlmock.NewRows([]string{"total"}).AddRow(int64(2))
	mock.ExpectQuery("CALL sp_get_contracts_list").
		WillReturnRows(contracts, totals)

	caller := NewSQLCaller(db)
	sets, err := caller.Call(context.Background(), "sp_get_contracts_list", int64(42), 1, 10, nil, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d result sets, want 2", len(sets))
	}
	if len(sets[0]) != 2 {
		t.Errorf("first set has %d rows, want 2", len(sets[0]))
	}
	if got := sets[1][0]["total"]; got != int64(2) {
		t.Errorf("total = %v, want 2", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestSQLCaller_RejectsBadProcedureName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	caller := NewSQLCaller(db)
	if _, err := caller.Call(context.Background(), "drop table; --"); err == nil {
		t.Fatal("Call should reject a non-identifier procedure name")
	}
}

func TestSQLCaller_QueryErrorIsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("CALL fastapi_validate_session").
		WillReturnError(errors.New("connection refused"))

	caller := NewSQLCaller(db)
	_, err = caller.Call(context.Background(), "fastapi_validate_session", "sess-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
