package twilio

import (
	"fmt"
	"strings"

	"github.com/Daskott/kinfolk/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type ClientWrapper struct {
	client *twilio.RestClient
	config shared.TwilioConfig
}

// NewClient returns nil when no account is configured, which turns SMS off.
func NewClient(config shared.TwilioConfig) *ClientWrapper {
	if strings.TrimSpace(config.AccountSid) == "" {
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{client: client, config: config}
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio: %v", *resp.ErrorMessage)
	}

	return nil
}

// PhoneNumber joins a country code and a local number into E.164 form.
func PhoneNumber(countryCode, number string) string {
	digits := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
	}

	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") {
		return "+" + digits(number)
	}

	return "+" + digits(countryCode) + strings.TrimLeft(digits(number), "0")
}
