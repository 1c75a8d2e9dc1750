package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedErrorFormatting(t *testing.T) {
	err := New(Validation, "mode is required", nil)
	if got := err.Error(); got != "VALIDATION: mode is required" {
		t.Fatalf("Error() = %q; want %q", got, "VALIDATION: mode is required")
	}
	cause := errors.New("dial refused")
	err = New(CDPUnavailable, "connect", cause)
	if got := err.Error(); got != "CDP_UNAVAILABLE: connect: dial refused" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false; want true")
	}
}

func TestCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("surface main: %w", New(SurfaceNotFound, "missing", nil))
	if got := Code(err); got != SurfaceNotFound {
		t.Fatalf("Code() = %q; want %q", got, SurfaceNotFound)
	}
	if got := Code(errors.New("plain")); got != "" {
		t.Fatalf("Code(plain) = %q; want empty", got)
	}
}
