package enums

// NotificationType categorizes platform notifications.
type NotificationType string

const (
	NotificationTypeOrderPaid       NotificationType = "order_paid"
	NotificationTypeOrderShipped    NotificationType = "order_shipped"
	NotificationTypeOrderDelivered  NotificationType = "order_delivered"
	NotificationTypeOrderCancelled  NotificationType = "order_cancelled"
	NotificationTypeWithdrawal      NotificationType = "withdrawal"
	NotificationTypeVendorSettled   NotificationType = "vendor_settled"
	NotificationTypePaymentFailed   NotificationType = "payment_failed"
	NotificationTypeGeneralActivity NotificationType = "activity"
)

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeOrderPaid,
		NotificationTypeOrderShipped,
		NotificationTypeOrderDelivered,
		NotificationTypeOrderCancelled,
		NotificationTypeWithdrawal,
		NotificationTypeVendorSettled,
		NotificationTypePaymentFailed,
		NotificationTypeGeneralActivity:
		return true
	default:
		return false
	}
}
