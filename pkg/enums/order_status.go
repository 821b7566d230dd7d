package enums

import "fmt"

// OrderStatus tracks an order through its lifecycle. Cancellation is
// only reachable from Processing or Paid.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether the status still permits cancellation.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusProcessing || s == OrderStatusPaid
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid order status %q", raw)
	}
	return s, nil
}
