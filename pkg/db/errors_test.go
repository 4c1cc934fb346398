package db

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsForeignKeyViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx fk", &pgconn.PgError{Code: "23503"}, true},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, false},
		{"pq fk", &pq.Error{Code: "23503"}, true},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), true},
		{"postgres text", errors.New(`insert or update on table "prices" violates foreign key constraint "prices_product_id_fkey"`), true},
		{"unrelated", errors.New("relation does not exist"), false},
	}
	for _, tc := range cases {
		if got := IsForeignKeyViolation(tc.err); got != tc.want {
			t.Fatalf("%s: IsForeignKeyViolation = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsForeignKeyViolation_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("upsert price: %w", &pgconn.PgError{Code: "23503"})
	if !IsForeignKeyViolation(err) {
		t.Fatalf("expected wrapped pg error detected")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "customers_pkey"}, "customers_pkey") {
		t.Fatalf("expected pgx unique violation with matching constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "other"}, "customers_pkey") {
		t.Fatalf("expected constraint mismatch to fail")
	}
	if !IsUniqueViolation(errors.New("duplicate key value violates unique constraint"), "") {
		t.Fatalf("expected text fallback match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: customers.user_id"), "") {
		t.Fatalf("expected sqlite text match")
	}
}

func TestIsRetryableClassification(t *testing.T) {
	retryable := []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		syscall.EHOSTUNREACH,
		io.ErrUnexpectedEOF,
		&pgconn.PgError{Code: "08006"},
		&pgconn.PgError{Code: "57P03"},
		&pgconn.PgError{Code: "53300"},
		errors.New("dial tcp: connection refused"),
		errors.New("the database system cannot connect now"),
	}
	for _, err := range retryable {
		if !isRetryable(err) {
			t.Fatalf("expected %v to be retryable", err)
		}
	}

	permanent := []error{
		nil,
		&pgconn.PgError{Code: "42601"},
		&pgconn.PgError{Code: "23503"},
		errors.New("syntax error at or near"),
	}
	for _, err := range permanent {
		if isRetryable(err) {
			t.Fatalf("expected %v to be non-retryable", err)
		}
	}
}
