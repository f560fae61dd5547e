package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}
	wrapped := fmt.Errorf("insert account: %w", pgErr)

	if !IsUniqueViolation(wrapped, "") {
		t.Error("expected unique violation for any constraint")
	}
	if !IsUniqueViolation(wrapped, "accounts_email_key") {
		t.Error("expected unique violation on accounts_email_key")
	}
	if IsUniqueViolation(wrapped, "patients_patient_code_key") {
		t.Error("expected no match for a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"asha", "%asha%"},
		{"50%", `%50\%%`},
		{"P_1", `%P\_1%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		if got := ContainsPattern(tt.in); got != tt.want {
			t.Errorf("ContainsPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
