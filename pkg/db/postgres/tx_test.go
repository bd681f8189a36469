package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		fk     bool
		uuid   bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, fk: true},
		{name: "invalid uuid", err: &pgconn.PgError{Code: "22P02"}, uuid: true},
		{name: "wrapped invalid uuid", err: fmt.Errorf("get slot: %w", &pgconn.PgError{Code: "22P02"}), uuid: true},
		{name: "plain error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsForeignKeyViolation(tt.err); got != tt.fk {
				t.Errorf("IsForeignKeyViolation() = %v, want %v", got, tt.fk)
			}
			if got := IsInvalidUUID(tt.err); got != tt.uuid {
				t.Errorf("IsInvalidUUID() = %v, want %v", got, tt.uuid)
			}
		})
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Fatalf("expected no transaction in a bare context, got %v", tx)
	}
}
