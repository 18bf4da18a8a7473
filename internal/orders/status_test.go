package orders

import "testing"

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusDelivering, StatusDelivered, StatusCancelled}

	allowed := map[[2]Status]bool{
		{StatusPending, StatusDelivering}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusDelivering, StatusDelivered}: true,
		{StatusDelivering, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:    false,
		StatusDelivering: false,
		StatusDelivered:  true,
		StatusCancelled:  true,
	}
	for st, want := range cases {
		if got := Terminal(st); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", st, got, want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, st := range []Status{StatusPending, StatusDelivering, StatusDelivered, StatusCancelled} {
		if !ValidStatus(st) {
			t.Errorf("ValidStatus(%s) = false, want true", st)
		}
	}
	if ValidStatus(Status("SHIPPED")) {
		t.Error("ValidStatus accepted an unknown status")
	}
}
