// internal/service/dto/notification.go
package dto

import (
	"time"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

// SendNotificationRequest is the publish body. Address is a tag in wire form.
type SendNotificationRequest struct {
	Address string `json:"address" validate:"required"`
	Subject string `json:"subject" validate:"required,min=6,max=30"`
	Message string `json:"message" validate:"required"`
}

// SendNotificationCommand arrives over the bus and carries its own sender token.
type SendNotificationCommand struct {
	Token string `json:"token" validate:"required"`
	SendNotificationRequest
}

type AddGroupRequest struct {
	GroupName  string `json:"group_name" validate:"required,min=6,max=30"`
	AdminEmail string `json:"admin_email" validate:"required,email"`
}

// StatusResponse carries a human-readable result.
type StatusResponse struct {
	Message string `json:"message"`
}

type NotificationDTO struct {
	ID       int64     `json:"id"`
	Channel  string    `json:"channel"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	Datetime time.Time `json:"datetime"`
}

type NotificationLogResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Count         int64             `json:"count"`
}

func FromNotification(m *model.NotificationMessage) NotificationDTO {
	return NotificationDTO{
		ID:       m.ID,
		Channel:  m.Channel,
		Subject:  m.Subject,
		Message:  m.Message,
		Datetime: m.Datetime,
	}
}

func FromNotificationLog(l *model.NotificationLog) *NotificationLogResponse {
	res := &NotificationLogResponse{
		Notifications: make([]NotificationDTO, 0, len(l.Notifications)),
		Count:         l.Count,
	}
	for _, m := range l.Notifications {
		res.Notifications = append(res.Notifications, FromNotification(m))
	}
	return res
}
