package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestShardTable(t *testing.T) {
	tests := []struct {
		shardID int
		want    string
	}{
		{0, "sheet_documents_0000"},
		{1, "sheet_documents_0001"},
		{42, "sheet_documents_0042"},
		{999, "sheet_documents_0999"},
		{9999, "sheet_documents_9999"},
	}

	for _, tt := range tests {
		if got := ShardTable(tt.shardID); got != tt.want {
			t.Errorf("ShardTable(%d) = %q, want %q", tt.shardID, got, tt.want)
		}
	}
}

func TestRunMigrations_CreatesEveryShard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	for _, table := range []string{"sheet_documents_0002", "sheet_documents_0003", "sheet_documents_0004"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	if err := RunMigrations(context.Background(), mock, 2, 4); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunMigrations_StopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sheet_documents_0000").
		WillReturnError(errors.New("permission denied"))

	err = RunMigrations(context.Background(), mock, 0, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
