package services

import (
	"context"
	"fmt"

	"github.com/yungbote/helpdesk-backend/internal/clients/sendgrid"
	"github.com/yungbote/helpdesk-backend/internal/clients/twilio"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

// ChannelNotifier pushes a text back to the channel a client came from.
// Chat and voice have no push path: chat clients poll, voice callers hear
// updates on their next call.
type ChannelNotifier interface {
	Notify(ctx context.Context, source types.TicketSource, identity, text string) error
}

type channelNotifier struct {
	log      *logger.Logger
	twilio   twilio.Client
	sendgrid sendgrid.Client
}

func NewChannelNotifier(log *logger.Logger, tw twilio.Client, sg sendgrid.Client) ChannelNotifier {
	return &channelNotifier{
		log:      log.With("service", "ChannelNotifier"),
		twilio:   tw,
		sendgrid: sg,
	}
}

func (n *channelNotifier) Notify(ctx context.Context, source types.TicketSource, identity, text string) error {
	if identity == "" || text == "" {
		return nil
	}
	switch source {
	case types.TicketSourceWhatsApp:
		_, err := n.twilio.SendWhatsApp(ctx, identity, text)
		if err != nil {
			return fmt.Errorf("whatsapp notify %s: %w", identity, err)
		}
		return nil
	case types.TicketSourceEmail, types.TicketSourcePortal:
		_, err := n.sendgrid.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: identity}},
			Subject: "Обновление по вашему обращению",
			Text:    text,
		})
		if err != nil {
			return fmt.Errorf("email notify %s: %w", identity, err)
		}
		return nil
	default:
		n.log.Debug("no push channel for source, skipping notification",
			"source", source, "identity", identity)
		return nil
	}
}
