package enums

import "fmt"

// NotificationType labels in-app notifications.
type NotificationType string

const (
	NotificationTypeNewRide       NotificationType = "new_ride"
	NotificationTypeRideAccepted  NotificationType = "ride_accepted"
	NotificationTypeRideCompleted NotificationType = "ride_completed"
	NotificationTypeRideCancelled NotificationType = "ride_cancelled"
	NotificationTypeChatMessage   NotificationType = "chat_message"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewRide,
	NotificationTypeRideAccepted,
	NotificationTypeRideCompleted,
	NotificationTypeRideCancelled,
	NotificationTypeChatMessage,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
