package order

import (
	"errors"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	t.Parallel()

	all := []Status{StatusPending, StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusShipped}:          true,
		{StatusShipped, StatusOutForDelivery}:   true,
		{StatusOutForDelivery, StatusDelivered}: true,
		{StatusPending, StatusCancelled}:        true,
	}

	for _, from := range all {
		for _, to := range all {
			err := CheckTransition(from, to)
			if allowed[[2]Status{from, to}] {
				if err != nil {
					t.Fatalf("%s -> %s: expected allowed, got %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "Pending", want: StatusPending},
		{in: " out for delivery ", want: StatusOutForDelivery},
		{in: "CANCELLED", want: StatusCancelled},
		{in: "Lost", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStatus) {
					t.Fatalf("expected ErrUnknownStatus, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()

	if !StatusDelivered.Terminal() || !StatusCancelled.Terminal() {
		t.Fatalf("expected Delivered and Cancelled to be terminal")
	}
	if StatusPending.Terminal() {
		t.Fatalf("expected Pending to have successors")
	}
	if got := StatusPending.Next(); len(got) != 2 {
		t.Fatalf("expected two successors for Pending, got %v", got)
	}
}
