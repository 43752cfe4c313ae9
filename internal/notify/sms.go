// Package notify sends reminder messages to users.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when SMS credentials are missing.
var ErrNotConfigured = errors.New("sms notifier not configured")

// Notifier delivers a text message and returns the provider's message ID.
type Notifier interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioNotifier struct {
	api    messageCreator
	from   string
	logger zerolog.Logger
}

// NewTwilioNotifier returns a Notifier sending through Twilio. When any
// credential is empty the notifier rejects every send with ErrNotConfigured.
func NewTwilioNotifier(accountSID, authToken, from string, logger zerolog.Logger) Notifier {
	logger = logger.With().Str("service", "TwilioNotifier").Logger()
	if accountSID == "" || authToken == "" || from == "" {
		logger.Warn().Msg("Twilio environment variables are not fully configured, SMS is disabled")
		return &twilioNotifier{logger: logger}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &twilioNotifier{api: client.Api, from: from, logger: logger}
}

func (n *twilioNotifier) SendSMS(ctx context.Context, to, body string) (string, error) {
	if n.api == nil {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		n.logger.Error().Err(err).Str("to", to).Msg("Failed to send SMS")
		return "", fmt.Errorf("send sms: %w", err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	n.logger.Info().Str("to", to).Str("sid", sid).Msg("SMS sent")
	return sid, nil
}
