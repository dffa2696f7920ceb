package logging

import (
	"context"
	"testing"
)

func TestLoggerCarriesSessionID(t *testing.T) {
	const id = "01234567890123456789012345678901"

	entry := Logger(WithSessionID(context.Background(), id))
	if got, ok := entry.Data["session"]; !ok || got != id {
		t.Fatalf("expected session field %q, got %v", id, entry.Data)
	}
}

func TestLoggerWithoutContextHasNoSessionField(t *testing.T) {
	if _, ok := Logger(nil).Data["session"]; ok {
		t.Fatalf("expected no session field on the default logger")
	}
	if _, ok := Logger(context.Background()).Data["session"]; ok {
		t.Fatalf("expected no session field without WithSessionID")
	}
}
