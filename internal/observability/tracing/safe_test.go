package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/invoices/:id"),
		attribute.String("customer.email", "a@example.com"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil")
	}
	err := SafeError(errors.New("first line\nsecond line with values"))
	if err.Error() != "first line" {
		t.Fatalf("expected first line only, got %q", err.Error())
	}
	long := SafeError(errors.New(strings.Repeat("x", 500)))
	if len(long.Error()) != 200 {
		t.Fatalf("expected 200 chars, got %d", len(long.Error()))
	}
}
