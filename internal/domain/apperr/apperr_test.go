package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("inventory: insufficient stock")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "plain error", err: errors.New("boom"), want: CodeInternal},
		{name: "direct", err: New(CodePaymentDeclined, "declined"), want: CodePaymentDeclined},
		{name: "wrapped", err: fmt.Errorf("place: %w", Wrap(CodeInsufficientStock, "stock", sentinel)), want: CodeInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("order: invalid status transition")
	err := Wrap(CodeInvalidTransition, "cannot move order", cause).WithDetails(map[string]string{"from": "Delivered"})

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach cause")
	}
	if err.Error() != "cannot move order: order: invalid status transition" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.Details == nil {
		t.Fatalf("expected details to be set")
	}
}
