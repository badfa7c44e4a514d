package ws

import (
	"context"

	"github.com/tbourn/go-im-core/internal/services"
)

// Notifier pushes relationship events through a Hub.
type Notifier struct {
	Hub *Hub
}

var _ services.Notifier = Notifier{}

func (n Notifier) NotifyApply(_ context.Context, receiverID int64, a services.ApplyNotice) {
	n.Hub.Send(receiverID, n.Hub.Envelope(TypeContactApply, a.SenderID, a))
}

func (n Notifier) NotifyReply(_ context.Context, receiverID int64, r services.ReplyNotice) {
	n.Hub.Send(receiverID, n.Hub.Envelope(TypeContactReply, r.UserID, r))
}
