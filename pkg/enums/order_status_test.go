package enums

import "testing"

func TestOrderStatusCanTransition(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusUnpaid, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusUnpaid, true},
		{OrderStatusShipped, OrderStatusUnpaid, true},

		{OrderStatusUnpaid, OrderStatusShipped, false},
		{OrderStatusUnpaid, OrderStatusDelivered, false},
		{OrderStatusUnpaid, OrderStatusCancelled, false},
		{OrderStatusProcessing, OrderStatusDelivered, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusUnpaid, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusCancelled, OrderStatusDelivered, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusUnpaid, OrderStatusProcessing, OrderStatusShipped} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseCourierStatus(t *testing.T) {
	cases := map[string]ShipmentStatus{
		"Delivered":                    ShipmentStatusDelivered,
		"delivered":                    ShipmentStatusDelivered,
		"Return to Origin - Delivered": ShipmentStatusRTODelivered,
		"Cancelled":                    ShipmentStatusCancelled,
		"In Transit":                   ShipmentStatusInTransit,
		"Delivery_Failed":              ShipmentStatusFailed,
	}
	for raw, want := range cases {
		got, err := ParseCourierStatus(raw)
		if err != nil {
			t.Fatalf("ParseCourierStatus(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseCourierStatus(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseCourierStatus("teleported"); err == nil {
		t.Fatal("unknown status should error")
	}
}

func TestShipmentStatusPromotion(t *testing.T) {
	if ShipmentStatusDelivered.OrderStatus() != OrderStatusDelivered {
		t.Fatal("delivered should promote order to delivered")
	}
	if ShipmentStatusRTODelivered.OrderStatus() != OrderStatusCancelled {
		t.Fatal("rto-delivered should promote order to cancelled")
	}
	if ShipmentStatusInTransit.OrderStatus() != "" {
		t.Fatal("non-terminal statuses should not promote the order")
	}
}

func TestWithdrawalStatusCanTransition(t *testing.T) {
	cases := []struct {
		from    WithdrawalStatus
		to      WithdrawalStatus
		allowed bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusApproved, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusRejected, WithdrawalStatusApproved, true},
		{WithdrawalStatusApproved, WithdrawalStatusPaid, true},
		{WithdrawalStatusApproved, WithdrawalStatusRejected, true},

		{WithdrawalStatusPending, WithdrawalStatusPaid, false},
		{WithdrawalStatusRejected, WithdrawalStatusPaid, false},
		{WithdrawalStatusPaid, WithdrawalStatusApproved, false},
		{WithdrawalStatusPaid, WithdrawalStatusRejected, false},
		{WithdrawalStatusPaid, WithdrawalStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}
