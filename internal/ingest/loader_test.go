package ingest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresLoaderReplacesMatch(t *testing.T) {
	db, mock := newSQLMock(t)
	m := sampleMatch()

	mock.ExpectBegin()
	for _, table := range append(append([]string{}, matchChildTables...), "wpl_match") {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM `+table+` WHERE match_id = $1`)).
			WithArgs(sampleMatchID).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_match (`)).
		WithArgs(sampleMatchID, "2022/23", "2023-03-04", "Dr DY Patil Sports Academy, Mumbai", "Mumbai",
			"Mumbai Indians", "Gujarat Giants", "Women's Premier League", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_match_info (`)).
		WithArgs(sampleMatchID, "female", 6, "Gujarat Giants", "field", "Mumbai Indians", 143,
			nil, nil, nil, nil, "HK Matthews").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, team := range []string{"Mumbai Indians", "Gujarat Giants"} {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_team`)).
			WithArgs(sampleMatchID, team).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range 4 {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_player`)).
			WithArgs(anyArgs(3)...).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for range 3 {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_official`)).
			WithArgs(anyArgs(3)...).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_person_registry`)).
		WithArgs("0a1b2c3d", "YH Bhatia").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wpl_person_registry`)).
		WithArgs("1b2c3d4e", "HK Matthews").
		WillReturnResult(sqlmock.NewResult(0, 1))

	prepared := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO wpl_delivery (`))
	firstArgs := append([]driver.Value{sampleMatchID, 1, 1, "0.1", 0, 1}, anyArgs(16)...)
	prepared.ExpectExec().WithArgs(firstArgs...).WillReturnResult(sqlmock.NewResult(0, 1))
	for range 3 {
		prepared.ExpectExec().WithArgs(anyArgs(22)...).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	lastArgs := append([]driver.Value{sampleMatchID, 2, 1, "0.1", 0, 1}, anyArgs(16)...)
	prepared.ExpectExec().WithArgs(lastArgs...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresLoader(db).LoadMatch(context.Background(), m); err != nil {
		t.Fatalf("LoadMatch() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestPostgresLoaderRollsBackOnFailure(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM wpl_delivery WHERE match_id = $1`)).
		WithArgs(sampleMatchID).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	err := NewPostgresLoader(db).LoadMatch(context.Background(), sampleMatch())
	if err == nil {
		t.Fatal("LoadMatch() expected error")
	}
	assertSQLMock(t, mock)
}

func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
