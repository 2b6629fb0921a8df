package postgres

import (
	"database/sql"
	"errors"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	if !isNotFound(sql.ErrNoRows) {
		t.Fatal("sql.ErrNoRows must classify as not found")
	}
	if isNotFound(errors.New("connection reset")) {
		t.Fatal("arbitrary errors must not classify as not found")
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Fatal("empty string must map to NULL")
	}
	if got := nullString("x"); got == nil || *got != "x" {
		t.Fatalf("expected pointer to x, got %v", got)
	}
	if stringValue(nil) != "" {
		t.Fatal("nil pointer must map to empty string")
	}
}
