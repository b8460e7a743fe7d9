package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapConstructors(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	tests := []struct {
		name     string
		wrap     func(string, error) error
		wantType ErrorType
	}{
		{"WrapValidation", WrapValidation, ErrorTypeValidation},
		{"WrapConflict", WrapConflict, ErrorTypeConflict},
		{"WrapInternal", WrapInternal, ErrorTypeInternal},
		{"WrapExternal", WrapExternal, ErrorTypeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap("operation failed", cause)

			if got := GetType(err); got != tt.wantType {
				t.Errorf("GetType() = %v, want %v", got, tt.wantType)
			}
			if got, want := err.Error(), "operation failed: connection refused"; got != want {
				t.Errorf("Error() = %q, want %q", got, want)
			}
			if !errors.Is(err, cause) {
				t.Error("wrapped error should unwrap to its cause")
			}
		})
	}
}

func TestGetTypeDefaultsToInternal(t *testing.T) {
	if got := GetType(fmt.Errorf("plain error")); got != ErrorTypeInternal {
		t.Errorf("GetType() = %v, want %v", got, ErrorTypeInternal)
	}
}
