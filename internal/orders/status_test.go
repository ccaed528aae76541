package orders

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{StatusPaid, StatusProcessing},
		{StatusPaid, StatusShipped},
		{StatusPaid, StatusCancelled},
		{StatusPaid, StatusDisputed},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusInDelivery},
		{StatusInDelivery, StatusDelivered},
		{StatusDelivered, StatusCompleted},
		{StatusDelivered, StatusDisputed},
		{StatusDisputed, StatusCancelled},
		{StatusDisputed, StatusCompleted},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be legal", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusPaid, StatusDelivered},
		{StatusPaid, StatusCompleted},
		{StatusShipped, StatusCancelled},
		{StatusShipped, StatusCompleted},
		{StatusInDelivery, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusCompleted, StatusCancelled},
		{StatusCompleted, StatusDisputed},
		{StatusCancelled, StatusPaid},
		{StatusCancelled, StatusDisputed},
		{StatusDisputed, StatusDisputed},
		{StatusCompleted, StatusPaid},
	}
	for _, tr := range forbidden {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPaid, StatusProcessing, StatusShipped, StatusInDelivery, StatusDelivered, StatusDisputed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestDisputable(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPaid, StatusProcessing, StatusShipped, StatusInDelivery, StatusDelivered} {
		if !s.Disputable() {
			t.Errorf("%s should be disputable", s)
		}
	}
	for _, s := range []Status{StatusDisputed, StatusCompleted, StatusCancelled} {
		if s.Disputable() {
			t.Errorf("%s should not be disputable", s)
		}
	}
}
