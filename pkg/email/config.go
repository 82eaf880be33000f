package email

// Provider selects the delivery backend.
type Provider string

const (
	ProviderPostmark Provider = "postmark"
	ProviderResend   Provider = "resend"
	ProviderDev      Provider = "dev"
)

// Config holds email service configuration.
// Provider tokens are optional so development environments can run with the
// dev sender. SenderEmail and SupportEmail establish the sender identity and
// reply-to address of every outbound message.
type Config struct {
	Provider             Provider `env:"EMAIL_PROVIDER" envDefault:"dev"`
	PostmarkServerToken  string   `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string   `env:"POSTMARK_ACCOUNT_TOKEN"`
	ResendAPIKey         string   `env:"RESEND_API_KEY"`
	SenderEmail          string   `env:"SENDER_EMAIL,required"`
	SupportEmail         string   `env:"SUPPORT_EMAIL,required"`
	DevDir               string   `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

func (c Config) validateIdentity() error {
	if c.SenderEmail == "" {
		return configError("SenderEmail is required")
	}
	if !emailRegex.MatchString(c.SenderEmail) {
		return configError("SenderEmail must be a valid email address")
	}
	if c.SupportEmail != "" && !emailRegex.MatchString(c.SupportEmail) {
		return configError("SupportEmail must be a valid email address")
	}
	return nil
}
