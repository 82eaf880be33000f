package email

import (
	"context"
	"errors"

	"github.com/resend/resend-go/v2"
)

type resendClient struct {
	client *resend.Client
	config Config
}

// NewResendClient creates a Resend-backed email sender.
func NewResendClient(cfg Config) (EmailSender, error) {
	if cfg.ResendAPIKey == "" {
		return nil, configError("ResendAPIKey is required")
	}
	if err := cfg.validateIdentity(); err != nil {
		return nil, err
	}

	return &resendClient{
		client: resend.NewClient(cfg.ResendAPIKey),
		config: cfg,
	}, nil
}

func (c *resendClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	req := &resend.SendEmailRequest{
		From:    c.config.SenderEmail,
		To:      []string{params.SendTo},
		Subject: params.Subject,
		Html:    params.BodyHTML,
		Text:    params.BodyText,
		ReplyTo: c.config.SupportEmail,
	}
	if _, err := c.client.Emails.SendWithContext(ctx, req); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}
