package enums

import (
	"fmt"
	"strings"
)

// ShipmentStatus mirrors courier-reported progress on a line item.
type ShipmentStatus string

const (
	ShipmentStatusPending      ShipmentStatus = "pending"
	ShipmentStatusShipped      ShipmentStatus = "shipped"
	ShipmentStatusInTransit    ShipmentStatus = "in_transit"
	ShipmentStatusDelivered    ShipmentStatus = "delivered"
	ShipmentStatusRTODelivered ShipmentStatus = "rto_delivered"
	ShipmentStatusCancelled    ShipmentStatus = "cancelled"
	ShipmentStatusFailed       ShipmentStatus = "failed"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusShipped,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusRTODelivered,
	ShipmentStatusCancelled,
	ShipmentStatusFailed,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the courier will emit no further events for
// this status.
func (s ShipmentStatus) IsTerminal() bool {
	switch s {
	case ShipmentStatusDelivered, ShipmentStatusRTODelivered, ShipmentStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderStatus maps a terminal shipment status onto the order status it
// promotes. Non-terminal statuses map to an empty value.
func (s ShipmentStatus) OrderStatus() OrderStatus {
	switch s {
	case ShipmentStatusDelivered:
		return OrderStatusDelivered
	case ShipmentStatusRTODelivered, ShipmentStatusCancelled:
		return OrderStatusCancelled
	default:
		return ""
	}
}

var courierStatusAliases = map[string]ShipmentStatus{
	"pending":                      ShipmentStatusPending,
	"pickup_requested":             ShipmentStatusPending,
	"shipped":                      ShipmentStatusShipped,
	"picked":                       ShipmentStatusShipped,
	"in_transit":                   ShipmentStatusInTransit,
	"in transit":                   ShipmentStatusInTransit,
	"delivered":                    ShipmentStatusDelivered,
	"partial_delivered":            ShipmentStatusDelivered,
	"return_to_origin_delivered":   ShipmentStatusRTODelivered,
	"return to origin - delivered": ShipmentStatusRTODelivered,
	"rto_delivered":                ShipmentStatusRTODelivered,
	"cancelled":                    ShipmentStatusCancelled,
	"canceled":                     ShipmentStatusCancelled,
	"delivery_failed":              ShipmentStatusFailed,
	"hold":                         ShipmentStatusFailed,
}

// ParseCourierStatus normalizes the free-form status string carried by
// courier webhook payloads.
func ParseCourierStatus(value string) (ShipmentStatus, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if status, ok := courierStatusAliases[key]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unrecognized courier status %q", value)
}
