package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestFromDBClassifiesBySQLState(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"pgx undefined column", &pgconn.PgError{Code: "42703", Message: `column "is_deleted" does not exist`}, KindSchemaMismatch},
		{"pq undefined table", &pq.Error{Code: "42P01", Message: `relation "complaints" does not exist`}, KindSchemaMismatch},
		{"wrapped pgx error", fmt.Errorf("query: %w", &pgconn.PgError{Code: "42703"}), KindSchemaMismatch},
		{"unique violation", &pgconn.PgError{Code: "23505"}, KindRemote},
		{"record not found", gorm.ErrRecordNotFound, KindNotFound},
		{"plain error", errors.New("connection refused"), KindRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB("list", tt.err)
			if k := KindOf(got); k != tt.want {
				t.Fatalf("KindOf = %q, want %q (err %v)", k, tt.want, got)
			}
		})
	}
}

func TestSchemaMismatchCarriesHint(t *testing.T) {
	err := FromDB("list tickets", &pgconn.PgError{Code: "42703"})
	if got := err.Error(); got != "list tickets: "+SchemaHint {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestFromDBKeepsClassifiedErrors(t *testing.T) {
	if got := FromDB("op", ErrNotConfigured); got != error(ErrNotConfigured) {
		t.Fatalf("expected classified error to pass through, got %v", got)
	}
	if FromDB("op", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestIsMatchesAcrossOps(t *testing.T) {
	err := fmt.Errorf("get: %w", &Error{Kind: KindNotFound, Op: "get ticket", Msg: ErrTicketNotFound.Msg})
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatal("expected errors.Is to match ErrTicketNotFound")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Fatal("not-found must not match not-configured")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatal("nil error has no kind")
	}
	if KindOf(Validation("bad status %q", "x")) != KindValidation {
		t.Fatal("expected validation kind")
	}
	if KindOf(errors.New("boom")) != KindRemote {
		t.Fatal("unclassified errors are remote")
	}
}
