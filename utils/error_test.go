package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestKindOf_WrappedCoreError(t *testing.T) {
	err := fmt.Errorf("sell: %w", InvalidStateError("asset already sold"))
	if KindOf(err) != KindInvalidState {
		t.Fatalf("expected INVALID_STATE, got %q", KindOf(err))
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected errors.Is to match the kind sentinel")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected match on another kind")
	}
	if KindOf(errors.New("boom")) != "" {
		t.Fatalf("foreign errors have no kind")
	}
}

func TestClassifyDBError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"record not found", gorm.ErrRecordNotFound, KindNotFound},
		{"deadlock", &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found"}, KindConflict},
		{"lock wait", fmt.Errorf("exec: %w", &mysqlDriver.MySQLError{Number: 1205}), KindConflict},
		{"duplicate", &mysqlDriver.MySQLError{Number: 1062}, KindConflict},
		{"core passes through", ValidationError("bad"), KindValidation},
		{"other", errors.New("syntax error"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(ClassifyDBError(tc.err)); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
	if ClassifyDBError(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestCoreErrorMessage(t *testing.T) {
	err := ExternalDependencyError(errors.New("dial tcp: refused"), "exchange rate lookup failed")
	if err.Error() != "exchange rate lookup failed: dial tcp: refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	got, err := NormalizePhoneNumber("0812-3456-7890")
	if err != nil {
		t.Fatalf("NormalizePhoneNumber: %v", err)
	}
	if got != "+6281234567890" {
		t.Fatalf("expected +6281234567890, got %s", got)
	}
	if got, err := NormalizePhoneNumber("  "); err != nil || got != "" {
		t.Fatalf("empty input: got %q err=%v", got, err)
	}
	if _, err := NormalizePhoneNumber("12"); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, 12, 17, 15, 4, 5, 0, time.UTC))
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := JwtGenerate(7, "kasir", "biz-1")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claim, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if claim.BusinessId != "biz-1" || claim.UserId != 7 || claim.UserName != "kasir" {
		t.Fatalf("unexpected claim %+v", claim)
	}

	t.Setenv("API_SECRET", "other-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
