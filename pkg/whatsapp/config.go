package whatsapp

// Config represents the configuration for the WhatsApp messaging client
type Config struct {
	// AccountSID identifies the messaging account and is the basic-auth user
	AccountSID string

	// AuthToken is the basic-auth password
	AuthToken string

	// BaseURL is the REST API root, e.g. https://api.twilio.com/2010-04-01
	BaseURL string

	// From is the sender number, without the "whatsapp:" prefix
	From string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AccountSID == "" || c.AuthToken == "" {
		return ErrInvalidConfig
	}
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.From == "" {
		return ErrInvalidConfig
	}
	return nil
}
