package amqp

import (
	"context"

	"github.com/webitel/im-notification-gateway/internal/service/dto"
)

// [ON_SEND_NOTIFICATION]
// Runs a bus publish command through the same path as POST /notification.
func (h *MessageHandler) OnSendNotificationV1(ctx context.Context, cmd *dto.SendNotificationCommand) error {
	msg, err := h.notifier.Send(ctx, cmd.Token, &cmd.SendNotificationRequest)
	if err != nil {
		return err
	}

	h.logger.Debug("BUS_NOTIFICATION_SENT", "msg_id", msg.ID, "address", cmd.Address)
	return nil
}
