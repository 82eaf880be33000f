// Package email sends transactional email through a provider-agnostic
// EmailSender.
//
// Three senders are available and selected by Config.Provider:
//   - postmark: Postmark transactional API
//   - resend: Resend API
//   - dev: writes each message to EMAIL_DEV_DIR as .html and .json files
//
// Every sender validates SendEmailParams before doing any work, and delivery
// failures wrap ErrFailedToSendEmail.
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//	sender, err := email.New(cfg)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Welcome",
//	    BodyHTML: "<p>Hello</p>",
//	})
package email
